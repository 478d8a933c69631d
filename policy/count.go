// policy/count.go
package policy

import (
	"context"
	"sync/atomic"

	"estat-client/event"
)

// CountPolicy 는 이벤트가 N개 쌓이면 flush 하는 가장 단순한 정책.
// ingest 루프 단일 goroutine 에서만 호출되지만,
// 테스트/관측 편의를 위해 카운터는 atomic 으로 유지한다.
type CountPolicy struct {
	threshold int64
	count     atomic.Int64
}

// NewCount 는 threshold 개 이벤트마다 flush 하는 정책을 만든다.
// threshold 가 0 이하면 1 로 보정한다 (매 이벤트 flush).
func NewCount(threshold int) *CountPolicy {
	if threshold <= 0 {
		threshold = 1
	}
	return &CountPolicy{threshold: int64(threshold)}
}

func (p *CountPolicy) UpdateState(_ *event.Event) {
	p.count.Add(1)
}

func (p *CountPolicy) ShouldFlush() bool {
	return p.count.Load() >= p.threshold
}

func (p *CountPolicy) Reset() {
	p.count.Store(0)
}

// 카운트 정책은 타이머가 필요 없다.
func (p *CountPolicy) Schedule(_ context.Context, _ func()) {}
func (p *CountPolicy) Unschedule()                          {}
