// transport/transport.go
package transport

import "context"

// Transport 는 sealed chunk 바이트를 원격 수집 지점으로 보내는 계약.
//
// true 는 "서버가 배치를 수락했고 원본 chunk 를 삭제해도 된다"는 뜻이다.
// false 면 chunk 는 보존되고 다음 flush pass 에서 다시 시도된다.
//
// 재시도/백오프/압축/인증은 전부 Transport 구현체 내부의 일이다.
// 파이프라인 코어는 pass 당 chunk 마다 Upload 를 정확히 1회 호출한다.
type Transport interface {
	Upload(ctx context.Context, body []byte) bool
}
