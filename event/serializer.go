// event/serializer.go
package event

import (
	json "github.com/goccy/go-json"
)

// Serializer 는 이벤트를 저장용 텍스트 한 줄로 변환하는 컴포넌트.
// 저장소에는 이벤트당 한 줄(JSONL)이 쌓이고, rollover 시점에
// 파일 전체가 gzip 으로 sealing 되어 업로드 단위(chunk)가 된다.
//
// 업로드 wire format 이 아니라 "persisted write path" 전용이다.
type Serializer interface {
	Serialize(ev *Event) (string, error)
}

// JSONSerializer 는 기본 Serializer 구현.
// 고성능 goccy/go-json 기반 JSON 인코딩을 사용한다.
type JSONSerializer struct{}

func NewJSONSerializer() JSONSerializer {
	return JSONSerializer{}
}

func (JSONSerializer) Serialize(ev *Event) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
