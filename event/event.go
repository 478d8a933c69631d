// event/event.go
package event

import (
	"estat-client/internal/timecache"
)

// Kind
// ------------------------------------------------------------
// 애플리케이션이 보고하는 이벤트의 종류.
// 파이프라인 자체는 종류를 구분하지 않고 그대로 저장/업로드하지만,
// downstream ETL 이 type 필드로 분기하므로 값은 고정 문자열이어야 한다.
type Kind string

const (
	KindTrack    Kind = "track"    // 사용자 행동 (예: 버튼 클릭, 구매)
	KindScreen   Kind = "screen"   // 화면/페이지 진입
	KindIdentify Kind = "identify" // 사용자 식별 정보 갱신
)

// Event
// ------------------------------------------------------------
// 호스트 애플리케이션이 생성하는 단일 분석 이벤트.
// 파이프라인에 Submit 된 순간부터는 불변으로 취급해야 한다
// (소유권이 ingest 단계로 넘어가며, 이후 수정은 data race).
//
// Handler 역할 없이 라이브러리로 임베드되므로,
// 수집 시각(Ts)은 생성자에서 timecache 기반으로 찍는다.
type Event struct {
	Kind        Kind           `json:"type"`                  // 이벤트 종류 (track/screen/identify)
	Ts          int64          `json:"ts"`                    // 생성 시각 (UTC epoch seconds)
	AnonymousID string         `json:"anonymous_id,omitempty"` // 비로그인 사용자 식별자
	UserID      string         `json:"user_id,omitempty"`      // 로그인 사용자 식별자
	Name        string         `json:"name,omitempty"`         // track: 이벤트명 / screen: 화면명
	Properties  map[string]any `json:"properties,omitempty"`   // 이벤트 부가 속성
	Traits      map[string]any `json:"traits,omitempty"`       // identify: 사용자 속성
}

// NewTrack 은 사용자 행동 이벤트를 생성한다.
func NewTrack(name string, properties map[string]any) *Event {
	return &Event{
		Kind:       KindTrack,
		Ts:         timecache.Unix(),
		Name:       name,
		Properties: properties,
	}
}

// NewScreen 은 화면 진입 이벤트를 생성한다.
func NewScreen(name string, properties map[string]any) *Event {
	return &Event{
		Kind:       KindScreen,
		Ts:         timecache.Unix(),
		Name:       name,
		Properties: properties,
	}
}

// NewIdentify 는 사용자 식별 이벤트를 생성한다.
func NewIdentify(userID string, traits map[string]any) *Event {
	return &Event{
		Kind:   KindIdentify,
		Ts:     timecache.Unix(),
		UserID: userID,
		Traits: traits,
	}
}
