package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// 파이프라인은 flush pass 마다 open 파일을 gzip 으로 sealing 하고,
// 이벤트마다 JSON 직렬화 결과 버퍼를 만든다.
// 호스트 애플리케이션 안에서 GC pressure 를 만들지 않는 것이
// 임베디드 SDK 의 기본 예의이므로 버퍼/압축기는 재사용한다.
// ---------------------------------------------------------------

var (
	// BufferPool:
	//   - gzip sealing 결과를 담는 임시 버퍼
	//   - 초기 용량 256KB (일반적인 chunk 사이즈에 최적화)
	//   - 1MB 초과 버퍼는 메모리 폭주 방지를 위해 풀에 넣지 않음
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용 (매번 new 하면 비용 매우 큼)
	//   - BestSpeed 옵션: 클라이언트 단말 특성상 CPU 절약 우선 전략
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// Pool에 되돌려줄 최대 gzip 버퍼 용량
// 이보다 큰 버퍼는 Pool에 넣지 않고 GC에게 위임해
// 메모리 폭발을 예방.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// PutBuffer:
//   - gzip 결과 버퍼 반환
//   - 1MB 이하이면 풀에 재사용
//   - 초대형 chunk gzip 결과는 풀로 돌리지 않음 → 메모리 안정화 목적
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
