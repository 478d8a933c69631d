// policy/policy.go
package policy

import (
	"context"

	"estat-client/event"
)

// FlushPolicy
// ------------------------------------------------------------
// "언제 배치 경계를 만들 것인가"를 결정하는 플러그인 규칙.
//
// 파이프라인은 정책 내부를 전혀 모른다. 이벤트가 들어올 때마다
// UpdateState 로 관찰시키고, ShouldFlush 로 경계 여부를 묻고,
// 경계가 발생하면 모든 정책에 Reset 을 호출할 뿐이다.
// 정책 여러 개를 등록하면 OR 결합: 하나라도 true 면 flush.
//
// Schedule / Unschedule 은 호스트 라이프사이클 연동용 훅이다.
// Start 시점에 Schedule(ctx, flush), Stop 시점에 Unschedule 이 불린다.
// 타이머 기반 정책은 여기서 자체 goroutine 을 띄우고,
// ctx 취소 또는 Unschedule 시 반드시 정리해야 한다.
type FlushPolicy interface {
	UpdateState(ev *event.Event)
	ShouldFlush() bool
	Reset()
	Schedule(ctx context.Context, flush func())
	Unschedule()
}
