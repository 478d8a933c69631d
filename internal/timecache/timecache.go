// internal/timecache/timecache.go
package timecache

import (
	"sync/atomic"
	"time"
)

//
// timecache.go
// ------------------------------------------------------------
// 매초(time.Now 호출 비용을 줄이기 위해) 현재 UTC epoch seconds,
// 그리고 KST 기준 날짜/시간 파티션을 캐싱하는 모듈.
//
// 클라이언트 파이프라인은 이벤트마다 timestamp 를 찍고,
// chunk 파일명·S3 파티션 prefix 에도 시각이 들어간다.
// 매 이벤트마다 time.Now() 호출하면 불필요한 시스템 콜 증가.
// 따라서 1초 ticker로 캐싱 후 초단위 정밀도만 유지한다.
//
// 사용처:
//   - Event.Ts (생성 시각)
//   - chunk 파일명 prefix (<unix>_<instance>_<counter>)
//   - S3 파티션 prefix (dt=YYYY-MM-DD / hr=HH)
// ------------------------------------------------------------

var (
	// 이벤트 timestamp(UTC epoch seconds)
	unixSec atomic.Int64

	// 날짜/시간 파티션(KST 기준)
	dtVal atomic.Value // "YYYY-MM-DD"
	hrVal atomic.Value // "HH"
)

const kstOffset = 9 * time.Hour

func init() {
	// 최초 seed
	update()

	// 1초마다 갱신
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			update()
		}
	}()
}

// 매초 업데이트
func update() {
	now := time.Now()
	unixSec.Store(now.Unix())

	kst := now.Add(kstOffset)
	dtVal.Store(kst.Format("2006-01-02"))
	hrVal.Store(kst.Format("15"))
}

// ------------------------------------------------------------
// Public API
// ------------------------------------------------------------

// Unix returns current UTC epoch seconds (cached, 1-second precision).
func Unix() int64 {
	return unixSec.Load()
}

// DT returns "YYYY-MM-DD" (KST 기준).
func DT() string {
	return dtVal.Load().(string)
}

// HR returns "HH" (KST 기준).
func HR() string {
	return hrVal.Load().(string)
}
