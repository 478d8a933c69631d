// pipeline/upload.go
package pipeline

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	"estat-client/storage"
)

// uploadLoop 는 upload 큐의 단일 consumer 다 (network I/O 담당 goroutine).
// trigger 하나당 정확히 한 번의 upload pass 를 수행하고,
// 큐가 취소되면 종료한다.
func (p *Pipeline) uploadLoop(ctx context.Context, in <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] upload loop exiting")
			return
		case <-in:
			p.uploadPass(ctx)
		}
	}
}

// uploadPass 는 rollover → chunk 열람 → 업로드 → 성공 chunk 삭제를
// 한 번 수행한다. async 루프와 FlushSync 가 이 루틴을 공유하므로
// 두 경로의 삭제 규칙이 어긋날 수 없다.
//
// 반환값: 이 pass 에서 업로드+삭제까지 완료된 chunk 가 하나라도 있으면 true.
func (p *Pipeline) uploadPass(ctx context.Context) bool {
	// 현재 쓰기 대상을 sealing 해서 불변 chunk 로 만든다.
	// sealing 에 실패해도 이전 pass 의 잔여 chunk 는 올릴 수 있으므로 계속.
	if err := p.store.Rollover(); err != nil {
		log.Printf("[ERROR] rollover failed: %v", err)
	}

	uploaded := false

	// handle 목록은 쉼표 구분 문자열. 빈 항목은 건너뛴다.
	for _, handle := range strings.Split(p.store.Read(storage.CategoryEvents), ",") {
		handle = strings.TrimSpace(handle)
		if handle == "" {
			continue
		}

		data, ok := p.store.ReadBytes(handle)
		if !ok {
			// 이미 소비됐거나 사라진 stale handle
			continue
		}

		atomic.AddInt64(&p.metrics.UploadAttemptsTotal, 1)

		if !p.transport.Upload(ctx, data) {
			// 실패 chunk 는 보존 → 다음 pass 에서 자연스럽게 재시도.
			// 한 chunk 의 실패가 같은 pass 의 나머지 chunk 를 막지 않는다.
			atomic.AddInt64(&p.metrics.UploadErrorsTotal, 1)
			log.Printf("[WARN] chunk upload failed → retained: %s", handle)
			continue
		}

		// 업로드 성공이 확인된 chunk 만 삭제한다
		if p.store.Remove(handle) {
			atomic.AddInt64(&p.metrics.ChunksUploadedTotal, 1)
			uploaded = true
		}
	}

	return uploaded
}
