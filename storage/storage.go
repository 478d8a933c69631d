// storage/storage.go
package storage

// CategoryEvents 는 기본 이벤트 카테고리.
// 현재 파이프라인은 이 카테고리 하나만 쓰지만,
// 저장소 계약은 카테고리 단위로 분리되어 있다.
const CategoryEvents = "events"

// Store
// ------------------------------------------------------------
// 파이프라인이 요구하는 로컬 저장소 계약.
//
//   - Write: 직렬화된 이벤트 한 줄을 현재 열린 파일에 append
//   - Rollover: 열린 파일을 불변 chunk 로 sealing 하고 새로 연다
//   - Read: 업로드 대기 중인 chunk handle 목록 (쉼표 구분 문자열,
//     빈 항목이 섞일 수 있으므로 소비자가 건너뛴다)
//   - ReadBytes: handle 의 raw bytes. 이미 소비되어 없으면 ok=false
//   - Remove: 업로드 성공이 확인된 chunk 만 삭제한다
//
// 구현체는 ingest 루프(Write)와 upload 루프(Rollover/Read/ReadBytes/Remove)가
// 동시에 호출해도 안전해야 한다. 파이프라인은 자체 락을 추가하지 않는다.
type Store interface {
	Write(category, line string) error
	Read(category string) string
	ReadBytes(handle string) ([]byte, bool)
	Rollover() error
	Remove(handle string) bool
}
