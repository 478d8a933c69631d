// pipeline/ingest.go
package pipeline

import (
	"context"
	"log"
	"sync/atomic"
)

// ingestLoop 는 ingest 큐의 단일 consumer 다 (storage I/O 담당 goroutine).
// 큐가 취소될 때까지 제출 순서 그대로(FIFO) 항목을 처리한다.
//
// 항목당 처리:
//  1. control signal 이면 저장 생략, 아니면 직렬화 + 저장 (실패는 로그 후 계속)
//  2. 이벤트를 모든 flush 정책에 관찰시킴
//  3. 경계 판단: control signal OR 정책 중 하나라도 ShouldFlush
//  4. 경계면 upload trigger 전송 후 모든 정책 Reset
func (p *Pipeline) ingestLoop(ctx context.Context, in <-chan message, out chan<- struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] ingest loop exiting")
			return
		case msg := <-in:
			p.handleIngest(ctx, msg, out)
		}
	}
}

func (p *Pipeline) handleIngest(ctx context.Context, msg message, out chan<- struct{}) {
	// control signal 은 절대 저장소에 닿지 않는다
	if !msg.flush {
		p.persist(msg.ev)

		// 저장 실패 여부와 무관하게 정책은 제출량을 관찰한다
		for _, pol := range p.policies {
			pol.UpdateState(msg.ev)
		}
	}

	boundary := msg.flush
	if !boundary {
		// OR 결합: 하나라도 true 면 경계
		for _, pol := range p.policies {
			if pol.ShouldFlush() {
				boundary = true
				break
			}
		}
	}
	if !boundary {
		return
	}

	// trigger 전송이 Reset 보다 먼저다: 경계를 만든 이벤트 i 의 trigger 가
	// 이벤트 i+1 처리 전에 upload 큐에 남는 것을 보장한다.
	// upload 큐가 가득 차면 여기서 대기한다 (경계는 coalesce 하지 않는다).
	select {
	case out <- struct{}{}:
		atomic.AddInt64(&p.metrics.FlushTriggersTotal, 1)
	case <-ctx.Done():
		return
	}

	for _, pol := range p.policies {
		pol.Reset()
	}
}
