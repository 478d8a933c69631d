package pipeline_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"estat-client/config"
	"estat-client/event"
	"estat-client/metrics"
	"estat-client/pipeline"
	"estat-client/storage"

	"github.com/stretchr/testify/assert"
)

// ------------------------------------------------------------
// 테스트용 collaborator fakes
// ------------------------------------------------------------

// memStore 는 Store 계약의 인메모리 구현.
// ingest 루프와 테스트 goroutine 이 동시에 접근하므로 mutex 로 보호한다.
type memStore struct {
	mu     sync.Mutex
	lines  []string
	chunks map[string][]byte
	seq    int

	writeErr error // 주입식 persistence failure
}

func newMemStore() *memStore {
	return &memStore{chunks: make(map[string][]byte)}
}

func (s *memStore) Write(_, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *memStore) Rollover() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return nil
	}
	s.seq++
	handle := fmt.Sprintf("chunk-%06d", s.seq)
	s.chunks[handle] = []byte(strings.Join(s.lines, "\n"))
	s.lines = nil
	return nil
}

func (s *memStore) Read(_ string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]string, 0, len(s.chunks))
	for h := range s.chunks {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return strings.Join(handles, ",")
}

func (s *memStore) ReadBytes(handle string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.chunks[handle]
	return data, ok
}

func (s *memStore) Remove(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[handle]; !ok {
		return false
	}
	delete(s.chunks, handle)
	return true
}

func (s *memStore) persistedLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *memStore) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *memStore) putChunk(handle string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[handle] = data
}

// memTransport 는 업로드된 body 를 순서대로 기록한다.
// accept 가 false 를 돌려주는 body 는 실패로 처리된다.
type memTransport struct {
	mu     sync.Mutex
	bodies [][]byte
	accept func(body []byte) bool
}

func newMemTransport() *memTransport {
	return &memTransport{}
}

func (t *memTransport) Upload(_ context.Context, body []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.accept != nil && !t.accept(body) {
		return false
	}
	t.bodies = append(t.bodies, append([]byte(nil), body...))
	return true
}

func (t *memTransport) uploaded() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.bodies))
	copy(out, t.bodies)
	return out
}

// recordingPolicy 는 count 기반으로 flush 를 발화시키면서
// Reset 호출 횟수를 기록한다. threshold=0 이면 절대 발화하지 않는다.
type recordingPolicy struct {
	threshold int64
	count     atomic.Int64
	resets    atomic.Int64
}

func (p *recordingPolicy) UpdateState(_ *event.Event) { p.count.Add(1) }
func (p *recordingPolicy) ShouldFlush() bool {
	return p.threshold > 0 && p.count.Load() >= p.threshold
}
func (p *recordingPolicy) Reset() {
	p.count.Store(0)
	p.resets.Add(1)
}
func (p *recordingPolicy) Schedule(_ context.Context, _ func()) {}
func (p *recordingPolicy) Unschedule()                          {}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.InstanceID = "test"
	return cfg
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// ------------------------------------------------------------
// 비동기 모드
// ------------------------------------------------------------

func TestSubmitPersistsInOrder(t *testing.T) {
	store := newMemStore()
	p := pipeline.New(testConfig(), metrics.New(), store, newMemTransport())
	p.Start()
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Submit(event.NewTrack(fmt.Sprintf("ev-%d", i), nil))
	}

	assert.Eventually(t, func() bool {
		return len(store.persistedLines()) == 5
	}, waitFor, tick)

	lines := store.persistedLines()
	for i, line := range lines {
		assert.Contains(t, line, fmt.Sprintf("ev-%d", i))
		assert.Contains(t, line, `"type":"track"`)
	}
	assert.Equal(t, 0, store.chunkCount(), "no boundary yet, nothing sealed")
}

func TestFlushSignalNotPersistedAndResetsPolicies(t *testing.T) {
	store := newMemStore()
	tr := newMemTransport()
	pol := &recordingPolicy{threshold: 0} // 발화하지 않고 Reset 만 관찰
	p := pipeline.New(testConfig(), metrics.New(), store, tr, pol)
	p.Start()
	defer p.Stop()

	p.Submit(event.NewTrack("a", nil))
	p.Submit(event.NewTrack("b", nil))
	p.Flush()

	assert.Eventually(t, func() bool {
		return len(tr.uploaded()) == 1
	}, waitFor, tick)

	body := string(tr.uploaded()[0])
	assert.Contains(t, body, `"a"`)
	assert.Contains(t, body, `"b"`)

	// control signal 자체는 어디에도 저장되지 않는다
	assert.Len(t, strings.Split(body, "\n"), 2)
	assert.Empty(t, store.persistedLines())

	// Reset 은 trigger 전송 직후 ingest 루프에서 일어난다
	assert.Eventually(t, func() bool {
		return pol.resets.Load() == 1
	}, waitFor, tick)

	assert.Eventually(t, func() bool {
		return store.chunkCount() == 0
	}, waitFor, tick, "uploaded chunk must be removed")
}

func TestCountPolicyMakesTwoBoundaries(t *testing.T) {
	store := newMemStore()
	tr := newMemTransport()
	m := metrics.New()
	pol := &recordingPolicy{threshold: 5}
	p := pipeline.New(testConfig(), m, store, tr, pol)
	p.Start()
	defer p.Stop()

	for i := 0; i < 10; i++ {
		p.Submit(event.NewTrack(fmt.Sprintf("ev-%d", i), nil))
	}

	uploadedLines := func() []string {
		var all []string
		for _, body := range tr.uploaded() {
			all = append(all, strings.Split(string(body), "\n")...)
		}
		return all
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&m.FlushTriggersTotal) == 2 && len(uploadedLines()) == 10
	}, waitFor, tick)

	assert.Eventually(t, func() bool {
		return pol.resets.Load() == 2
	}, waitFor, tick)

	// 업로드 순서대로 이어붙이면 제출 순서가 보존되어야 한다
	all := uploadedLines()
	assert.Len(t, all, 10)
	for i, line := range all {
		assert.Contains(t, line, fmt.Sprintf("ev-%d", i))
	}
}

func TestPersistFailureDoesNotStopLoop(t *testing.T) {
	store := newMemStore()
	store.writeErr = fmt.Errorf("disk full")
	m := metrics.New()
	p := pipeline.New(testConfig(), m, store, newMemTransport())
	p.Start()
	defer p.Stop()

	p.Submit(event.NewTrack("lost", nil))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&m.PersistErrorsTotal) == 1
	}, waitFor, tick)

	// 루프는 살아 있다: write 가 복구되면 다음 이벤트는 저장된다
	store.mu.Lock()
	store.writeErr = nil
	store.mu.Unlock()

	p.Submit(event.NewTrack("kept", nil))

	assert.Eventually(t, func() bool {
		lines := store.persistedLines()
		return len(lines) == 1 && strings.Contains(lines[0], "kept")
	}, waitFor, tick)
}

func TestUploadFailureRetainsOnlyFailedChunk(t *testing.T) {
	store := newMemStore()
	store.putChunk("chunk-a", []byte("aaa"))
	store.putChunk("chunk-b", []byte("bbb"))

	tr := newMemTransport()
	tr.accept = func(body []byte) bool {
		return string(body) != "aaa" // chunk-a 만 실패
	}

	m := metrics.New()
	p := pipeline.New(testConfig(), m, store, tr)

	assert.True(t, p.FlushSync(), "chunk-b succeeded, so FlushSync reports true")

	_, aStillThere := store.ReadBytes("chunk-a")
	_, bStillThere := store.ReadBytes("chunk-b")
	assert.True(t, aStillThere, "failed chunk must be retained")
	assert.False(t, bStillThere, "successful chunk must be removed")
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.UploadErrorsTotal))
}

// ------------------------------------------------------------
// 동기 모드 / 라이프사이클
// ------------------------------------------------------------

func TestFlushSyncWithNothingPending(t *testing.T) {
	p := pipeline.New(testConfig(), metrics.New(), newMemStore(), newMemTransport())
	assert.False(t, p.FlushSync())
}

func TestSubmitSyncWritesInline(t *testing.T) {
	store := newMemStore()
	p := pipeline.New(testConfig(), metrics.New(), store, newMemTransport())

	// Start 없이도 동기 경로는 동작한다
	p.SubmitSync(event.NewIdentify("user-1", map[string]any{"plan": "pro"}))

	lines := store.persistedLines()
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"type":"identify"`)
	assert.Contains(t, lines[0], "user-1")
}

func TestSyncModeSpawnsNoConsumers(t *testing.T) {
	cfg := testConfig()
	cfg.SyncMode = true

	store := newMemStore()
	p := pipeline.New(cfg, metrics.New(), store, newMemTransport())
	p.Start()
	defer p.Stop()

	assert.True(t, p.IsRunning())

	// 비동기 제출은 조용한 no-op
	p.Submit(event.NewTrack("ignored", nil))
	p.Flush()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.persistedLines())
	assert.Equal(t, 0, store.chunkCount())

	// 동기 경로만 의미를 가진다
	p.SubmitSync(event.NewTrack("direct", nil))
	assert.Len(t, store.persistedLines(), 1)
	assert.True(t, p.FlushSync())
}

func TestSubmitBeforeStartIsSilentlyIgnored(t *testing.T) {
	store := newMemStore()
	p := pipeline.New(testConfig(), metrics.New(), store, newMemTransport())

	p.Submit(event.NewTrack("early", nil))
	p.Flush()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, store.persistedLines())
	assert.False(t, p.IsRunning())
}

func TestStartStopIdempotent(t *testing.T) {
	p := pipeline.New(testConfig(), metrics.New(), newMemStore(), newMemTransport())

	p.Stop() // not running → no-op
	assert.False(t, p.IsRunning())

	p.Start()
	p.Start()
	assert.True(t, p.IsRunning())

	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())
}

func TestRestartRecreatesQueues(t *testing.T) {
	store := newMemStore()
	p := pipeline.New(testConfig(), metrics.New(), store, newMemTransport())

	p.Start()
	p.Stop()

	// 취소된 큐가 재사용되면 이 이벤트는 영원히 처리되지 않는다
	p.Start()
	defer p.Stop()
	p.Submit(event.NewTrack("after-restart", nil))

	assert.Eventually(t, func() bool {
		lines := store.persistedLines()
		return len(lines) == 1 && strings.Contains(lines[0], "after-restart")
	}, waitFor, tick)
}

// 파이프라인의 기본 카테고리는 저장소 계약의 events 카테고리다.
func TestUsesEventsCategory(t *testing.T) {
	assert.Equal(t, "events", storage.CategoryEvents)
}
