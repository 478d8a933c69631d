// policy/interval.go
package policy

import (
	"context"
	"sync"
	"time"

	"estat-client/event"
)

// IntervalPolicy 는 일정 주기마다 무조건 flush 를 요청하는 시간 기반 정책.
//
// 이벤트 관찰(UpdateState/ShouldFlush)과는 무관하게,
// Schedule 시점에 ticker goroutine 을 띄워 주기마다 flush 콜백을 부른다.
// 콜백은 파이프라인의 Flush (non-blocking control signal enqueue)이므로
// ingest 루프가 밀려 있어도 ticker 가 적체되지 않는다.
type IntervalPolicy struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewInterval 은 interval 주기 flush 정책을 만든다.
// interval 이 0 이하면 30초로 보정한다.
func NewInterval(interval time.Duration) *IntervalPolicy {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &IntervalPolicy{interval: interval}
}

// 시간 기반 정책은 이벤트 단위 상태가 없다.
func (p *IntervalPolicy) UpdateState(_ *event.Event) {}
func (p *IntervalPolicy) ShouldFlush() bool          { return false }
func (p *IntervalPolicy) Reset()                     {}

// Schedule 은 ticker goroutine 을 시작한다.
// 이미 스케줄된 상태면 no-op (Start 멱등성과 짝 맞춤).
// ctx 취소 또는 Unschedule 둘 중 먼저 오는 쪽에서 goroutine 이 정리된다.
func (p *IntervalPolicy) Schedule(ctx context.Context, flush func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	tctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				flush()
			}
		}
	}()
}

// Unschedule 은 ticker goroutine 을 멈춘다. 멱등.
func (p *IntervalPolicy) Unschedule() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
