package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 파이프라인 상태를 나타내는 카운터 모음이다.
// 호스트 애플리케이션이 주기적으로 String() 을 내보내거나
// 개별 카운터를 atomic.LoadInt64 로 읽어 관측한다.
type Metrics struct {
	// ======================
	// Submit 레벨 지표
	// ======================

	// EventsSubmittedTotal
	// - Submit 으로 ingest 큐에 정상 enqueue 된 이벤트 수.
	// - SubmitSync 경로는 포함하지 않는다 (EventsPersistedTotal 로만 관측).
	EventsSubmittedTotal int64

	// EventsDroppedQueueFullTotal
	// - ingest 큐가 가득 차서 즉시 drop 된 이벤트 수.
	// - 이 값이 지속적으로 증가하면 큐 크기(IngestQueueSize)가 작거나,
	//   storage/업로드 단계가 느려져 consumer 가 밀리고 있다는 신호.
	EventsDroppedQueueFullTotal int64

	// ======================
	// Storage 레벨 지표
	// ======================

	// EventsPersistedTotal
	// - 로컬 저장소에 성공적으로 기록된 이벤트 수 (Submit + SubmitSync 합산).
	EventsPersistedTotal int64

	// PersistErrorsTotal
	// - 직렬화 실패 또는 저장소 write 실패로 유실된 이벤트 수.
	// - 파이프라인은 재시도하지 않으므로 이 값은 곧 "영구 유실" 수다.
	PersistErrorsTotal int64

	// ======================
	// Flush / Upload 레벨 지표
	// ======================

	// FlushTriggersTotal
	// - upload 큐로 전송된 trigger 수 (control signal + policy 발화 합산).
	FlushTriggersTotal int64

	// UploadAttemptsTotal
	// - chunk 단위 Transport.Upload 호출 수 (pass 기준, Transport 내부 재시도 제외).
	UploadAttemptsTotal int64

	// UploadAttemptErrorsTotal
	// - Transport 내부의 개별 시도(attempt) 실패 횟수.
	// - 재시도가 있으면 chunk 하나에서도 여러 번 증가할 수 있다.
	//   예: 3회 재시도 설정, 모두 실패 → 이 카운터는 +3.
	UploadAttemptErrorsTotal int64

	// UploadErrorsTotal
	// - Transport 가 최종 실패를 보고한 chunk 수. 해당 chunk 는 보존되어
	//   다음 pass 에서 다시 시도된다.
	UploadErrorsTotal int64

	// ChunksUploadedTotal
	// - 업로드 성공 후 로컬에서 제거까지 완료된 chunk 수.
	ChunksUploadedTotal int64

	// ======================
	// 로컬 chunk 저장소 지표
	// ======================

	// ChunksEvictedTotal
	// - StorageMaxBytes 용량 정책으로 삭제된 chunk 수.
	// - 0 이 아니라는 것은 업로드가 용량을 따라가지 못해
	//   데이터를 잃기 시작했다는 강한 신호.
	ChunksEvictedTotal int64

	// ChunksExpiredTotal
	// - ChunkMaxAge TTL 초과로 삭제된 chunk 수.
	ChunksExpiredTotal int64

	// ChunksCurrent
	// - 현재 저장소에 존재하는 sealed chunk 개수 (gauge).
	ChunksCurrent int64

	// StorageSizeBytes
	// - 현재 sealed chunk 들의 전체 용량 (gauge, bytes).
	// - StorageMaxBytes 대비 사용률 계산에 쓴다.
	StorageSizeBytes int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(256)

	fmt.Fprintf(&sb, "events_submitted_total=%d\n", atomic.LoadInt64(&m.EventsSubmittedTotal))
	fmt.Fprintf(&sb, "events_dropped_queue_full_total=%d\n", atomic.LoadInt64(&m.EventsDroppedQueueFullTotal))

	fmt.Fprintf(&sb, "events_persisted_total=%d\n", atomic.LoadInt64(&m.EventsPersistedTotal))
	fmt.Fprintf(&sb, "persist_errors_total=%d\n", atomic.LoadInt64(&m.PersistErrorsTotal))

	fmt.Fprintf(&sb, "flush_triggers_total=%d\n", atomic.LoadInt64(&m.FlushTriggersTotal))
	fmt.Fprintf(&sb, "upload_attempts_total=%d\n", atomic.LoadInt64(&m.UploadAttemptsTotal))
	fmt.Fprintf(&sb, "upload_attempt_errors_total=%d\n", atomic.LoadInt64(&m.UploadAttemptErrorsTotal))
	fmt.Fprintf(&sb, "upload_errors_total=%d\n", atomic.LoadInt64(&m.UploadErrorsTotal))
	fmt.Fprintf(&sb, "chunks_uploaded_total=%d\n", atomic.LoadInt64(&m.ChunksUploadedTotal))

	fmt.Fprintf(&sb, "chunks_evicted_total=%d\n", atomic.LoadInt64(&m.ChunksEvictedTotal))
	fmt.Fprintf(&sb, "chunks_expired_total=%d\n", atomic.LoadInt64(&m.ChunksExpiredTotal))
	fmt.Fprintf(&sb, "chunks_current=%d\n", atomic.LoadInt64(&m.ChunksCurrent))
	fmt.Fprintf(&sb, "storage_size_bytes=%d\n", atomic.LoadInt64(&m.StorageSizeBytes))

	return sb.String()
}
