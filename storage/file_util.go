// storage/file_util.go
package storage

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"estat-client/internal/timecache"
)

// file_util.go
// ------------------------------------------------------------
// chunk 파일 저장 시 사용하는 유틸리티 모음.
// 파일명 규칙은 업로드 순서·TTL 판단의 핵심이므로
// 예측 가능한 deterministic 패턴을 유지해야 한다.
//
// 파일명 규칙:
//
//	<unix>_<instance>_<counter>.jsonl.gz
//
// 예:
//
//	1764721594_ios-a1b2c3_000042.jsonl.gz
//
// 정렬하면 곧 시간 순 정렬이므로,
// 업로드 pass 와 용량 eviction 모두 가장 오래된 chunk 선처리에 사용한다.
var globalCounter uint64

// NextCounter
// ------------------------------------------------------------
// 원자적 증가 값으로 여러 goroutine에서 충돌 없이
// 순차 번호를 생성한다.
// 1,000,000(약 1e6)에서 다시 0으로 돌아가므로 파일명이 지나치게 커지는 것을 방지.
// wrap-around 되어도 timestamp·instance ID 조합으로
// 전체 파일명 충돌 가능성은 사실상 0에 가깝다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewChunkName
// ------------------------------------------------------------
// 새로운 chunk 파일명을 생성한다.
// <unix>_<instance>_<counter>.jsonl.gz 형태.
func NewChunkName(instanceID string) string {
	sec := timecache.Unix()
	c := NextCounter()
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", sec, instanceID, c)
}

// extractUnixFromFilename 은 chunk 파일명 prefix 에서 Unix seconds 를 파싱한다.
// 파일명 형식: "<unix>_<instance>_<counter>.jsonl.gz"
func extractUnixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
