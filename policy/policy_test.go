package policy_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"estat-client/event"
	"estat-client/policy"

	"github.com/stretchr/testify/assert"
)

func TestCountPolicy(t *testing.T) {
	p := policy.NewCount(3)

	assert.False(t, p.ShouldFlush())

	p.UpdateState(event.NewTrack("a", nil))
	p.UpdateState(event.NewTrack("b", nil))
	assert.False(t, p.ShouldFlush())

	p.UpdateState(event.NewTrack("c", nil))
	assert.True(t, p.ShouldFlush())

	// threshold 초과 상태에서도 true 를 유지한다 (경계는 소비자가 만든다)
	p.UpdateState(event.NewTrack("d", nil))
	assert.True(t, p.ShouldFlush())

	p.Reset()
	assert.False(t, p.ShouldFlush())
}

func TestCountPolicyNonPositiveThreshold(t *testing.T) {
	p := policy.NewCount(0)

	// 0 이하는 1 로 보정: 매 이벤트가 경계
	p.UpdateState(event.NewTrack("a", nil))
	assert.True(t, p.ShouldFlush())
}

func TestIntervalPolicyFiresAndStops(t *testing.T) {
	p := policy.NewInterval(10 * time.Millisecond)

	// 이벤트 관찰 경로는 항상 중립이다
	p.UpdateState(event.NewTrack("a", nil))
	assert.False(t, p.ShouldFlush())

	var fired atomic.Int64
	p.Schedule(context.Background(), func() { fired.Add(1) })

	assert.Eventually(t, func() bool {
		return fired.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	p.Unschedule()
	time.Sleep(30 * time.Millisecond) // 전파 대기: in-flight tick 소진
	after := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, fired.Load(), "no more fires after Unschedule")

	// Unschedule 은 멱등
	p.Unschedule()
}

func TestIntervalPolicyScheduleIdempotent(t *testing.T) {
	p := policy.NewInterval(10 * time.Millisecond)
	defer p.Unschedule()

	var first, second atomic.Int64
	p.Schedule(context.Background(), func() { first.Add(1) })
	p.Schedule(context.Background(), func() { second.Add(1) }) // no-op

	assert.Eventually(t, func() bool {
		return first.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), second.Load())
}

func TestIntervalPolicyStopsOnContextCancel(t *testing.T) {
	p := policy.NewInterval(10 * time.Millisecond)
	defer p.Unschedule()

	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Int64
	p.Schedule(ctx, func() { fired.Add(1) })

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, fired.Load(), "ctx cancel must stop the ticker goroutine")
}
