// pipeline/pipeline.go
package pipeline

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"estat-client/config"
	"estat-client/event"
	"estat-client/metrics"
	"estat-client/policy"
	"estat-client/storage"
	"estat-client/transport"
)

// message 는 ingest 큐의 항목이다.
// sentinel 인스턴스 비교 대신 tagged variant 로 control signal 을 구분한다:
//   - flush=false: 실제 이벤트 (저장 대상)
//   - flush=true:  "지금 flush 하라"는 control signal (절대 저장되지 않음)
type message struct {
	ev    *event.Event
	flush bool
}

// Pipeline 은 클라이언트 텔레메트리 전송의 핵심 파이프라인이다.
// Submit 으로 들어온 이벤트를 로컬 chunk 파일에 모아서(batch)
//   - flush 정책이 경계를 선언하면 rollover 로 sealing
//   - Transport 로 업로드, 성공 chunk 만 삭제
//
// 하는 전체 흐름을 제어한다.
//
// 주요 구성:
//   - ingestCh: Submit/Flush → ingest 루프로 전달 (FIFO)
//   - ingestLoop: 이벤트 저장 + flush 정책 관찰, 경계 시 trigger 발행
//   - uploadCh: 배치 경계마다 upload trigger 전달
//   - uploadLoop: rollover → chunk 열람 → 업로드 → 성공분 삭제
//
// 두 루프는 각자의 큐로만 결합되며, 실패는 전부 로그로 흡수된다
// (저장 실패 = 이벤트 유실, 업로드 실패 = chunk 보존 후 다음 pass 재시도).
//
// SyncMode 에서는 루프를 전혀 띄우지 않고
// SubmitSync / FlushSync 만 의미를 가진다 (프로세스 종료 직전 flush 용).
type Pipeline struct {
	cfg        config.Config
	metrics    *metrics.Metrics
	store      storage.Store
	transport  transport.Transport
	serializer event.Serializer
	policies   []policy.FlushPolicy

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	ingestCh chan message
	uploadCh chan struct{}
	wg       sync.WaitGroup
}

// New 는 파이프라인을 조립한다. Start 전까지는 아무것도 돌지 않는다.
// 정책을 하나도 주지 않으면 control signal(Flush 호출)로만 flush 된다.
func New(
	cfg config.Config,
	m *metrics.Metrics,
	store storage.Store,
	tr transport.Transport,
	policies ...policy.FlushPolicy,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		metrics:    m,
		store:      store,
		transport:  tr,
		serializer: event.NewJSONSerializer(),
		policies:   policies,
	}
}

// Start 는 파이프라인을 가동한다. 멱등 — 이미 돌고 있으면 no-op.
//
// 이전 run 의 큐가 취소된 상태면 ctx 와 채널을 함께 재생성한다.
// 취소된 채널 조합을 재사용하면 consumer 가 영구 종료 상태의 큐를
// 읽게 되므로, "취소된 큐는 절대 재사용하지 않는다"가 불변식이다.
//
// SyncMode 면 백그라운드 루프를 띄우지 않는다 — 큐도 만들지 않으며,
// Submit / Flush 는 조용한 no-op 이 된다.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	if p.ctx == nil || p.ctx.Err() != nil {
		p.ctx, p.cancel = context.WithCancel(context.Background())
		if !p.cfg.SyncMode {
			p.ingestCh = make(chan message, p.cfg.IngestQueueSize)
			p.uploadCh = make(chan struct{}, p.cfg.UploadQueueSize)
		}
	}
	p.running = true

	// flush 정책 라이프사이클 훅 (타이머 기반 정책이 여기서 스케줄링됨)
	for _, pol := range p.policies {
		pol.Schedule(p.ctx, p.Flush)
	}

	if !p.cfg.SyncMode {
		p.wg.Add(2)
		go p.ingestLoop(p.ctx, p.ingestCh, p.uploadCh)
		go p.uploadLoop(p.ctx, p.uploadCh)
	}
}

// Stop 은 파이프라인을 멈춘다. 멱등 — 돌고 있지 않으면 no-op.
//
// 두 큐를 취소로 broadcast 해서 blocked receiver 를 깨우고,
// 정책 스케줄을 해제한 뒤, 루프 goroutine 이 완전히 내려갈 때까지
// 기다린다. 큐에 남아 있던 항목은 유실된다 (다음 Start 에서 새 큐).
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	for _, pol := range p.policies {
		pol.Unschedule()
	}

	p.wg.Wait()
}

// IsRunning 은 현재 가동 여부를 반환한다.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Submit 은 이벤트를 ingest 큐에 넣는다. 절대 블로킹하지 않는다.
//   - 파이프라인이 멈춰 있으면(큐 부재) 조용히 무시 — Start 를 먼저 불러야 한다
//   - 큐가 가득 차면 drop (로그 + 카운터). 호출자에게 backpressure 를 주지 않는다
func (p *Pipeline) Submit(ev *event.Event) {
	p.mu.Lock()
	running := p.running
	ch := p.ingestCh
	p.mu.Unlock()

	if !running || ch == nil {
		return
	}

	select {
	case ch <- message{ev: ev}:
		atomic.AddInt64(&p.metrics.EventsSubmittedTotal, 1)
	default:
		atomic.AddInt64(&p.metrics.EventsDroppedQueueFullTotal, 1)
		log.Printf("[WARN] ingest queue full → event dropped")
	}
}

// Flush 는 control signal 을 ingest 큐에 넣는다. 절대 블로킹하지 않는다.
// signal 은 저장소를 거치지 않고, ingest 루프가 소비하는 즉시
// 정책 상태와 무관하게 배치 경계를 만든다.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	running := p.running
	ch := p.ingestCh
	p.mu.Unlock()

	if !running || ch == nil {
		return
	}

	select {
	case ch <- message{flush: true}:
	default:
		log.Printf("[WARN] ingest queue full → flush signal dropped")
	}
}

// SubmitSync 는 큐를 우회해 호출 goroutine 에서 즉시 write 를 수행한다.
// write 시도가 끝날 때까지(성공 또는 로그 남긴 실패) 블로킹한다.
// flush 정책은 관찰시키지 않는다 — 동기 경로의 flush 는 FlushSync 몫이다.
func (p *Pipeline) SubmitSync(ev *event.Event) {
	p.persist(ev)
}

// FlushSync 는 큐를 우회해 rollover + 업로드를 인라인으로 수행한다.
// async upload 루프와 동일한 uploadPass 루틴을 그대로 쓰므로
// "성공 시 삭제" 규칙이 두 경로에서 어긋날 수 없다.
// 반환값: 이 호출에서 chunk 가 하나라도 업로드+삭제되면 true.
func (p *Pipeline) FlushSync() bool {
	return p.uploadPass(context.Background())
}

// persist 는 이벤트 한 건을 직렬화해 저장소에 쓴다.
// 실패는 잡아서 로그만 남긴다 — 이벤트는 유실되고 재시도하지 않는다.
func (p *Pipeline) persist(ev *event.Event) {
	line, err := p.serializer.Serialize(ev)
	if err != nil {
		atomic.AddInt64(&p.metrics.PersistErrorsTotal, 1)
		log.Printf("[ERROR] event serialize failed: %v", err)
		return
	}

	if err := p.store.Write(storage.CategoryEvents, line); err != nil {
		atomic.AddInt64(&p.metrics.PersistErrorsTotal, 1)
		log.Printf("[ERROR] event write failed: %v", err)
		return
	}

	atomic.AddInt64(&p.metrics.EventsPersistedTotal, 1)
}
