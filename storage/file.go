// storage/file.go
package storage

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"estat-client/config"
	"estat-client/internal/pool"
	"estat-client/internal/timecache"
	"estat-client/metrics"

	"github.com/klauspost/compress/gzip"
)

// openName 은 카테고리별 현재 append 대상 파일 이름.
// sealing 전까지는 압축하지 않은 JSONL 그대로 쌓인다.
const openName = "open.jsonl"

// FileStore 는 Store 의 기본 구현으로,
// 로컬 디렉토리에 카테고리별 append 파일과 sealed chunk 를 관리한다.
//
// 디렉토리 구조:
//
//	<dir>/<category>/open.jsonl                          ← 현재 쓰기 대상
//	<dir>/<category>/<unix>_<instance>_<counter>.jsonl.gz ← 업로드 대기 chunk
//
// chunk handle 은 파일의 전체 경로다.
// 파일명 prefix 의 Unix timestamp 로 TTL 과 eviction 순서를 판단한다.
// (lexicographic sort = 시간 정렬, estat 서버의 DLQ 파일 규칙과 동일)
type FileStore struct {
	cfg     config.Config
	metrics *metrics.Metrics

	mu        sync.Mutex
	open      map[string]*os.File // category → append 파일 핸들
	sizeBytes int64               // sealed chunk 총 바이트
}

// NewFileStore 는 저장 디렉토리를 초기화하고, 기존 chunk 를 스캔하여
// StorageSizeBytes / ChunksCurrent 를 복원한다.
// 앱 재시작(크래시 포함) 후에도 업로드 대기 chunk 와
// 쓰다 만 open 파일은 그대로 이어서 처리된다.
func NewFileStore(cfg config.Config, m *metrics.Metrics) (*FileStore, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, err
	}

	s := &FileStore{
		cfg:     cfg,
		metrics: m,
		open:    make(map[string]*os.File),
	}

	var total int64
	var count int64

	for _, cat := range s.categoriesOnDisk() {
		entries, err := os.ReadDir(filepath.Join(cfg.StorageDir, cat))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.gz") {
				continue
			}
			if info, err := e.Info(); err == nil {
				total += info.Size()
				count++
			}
		}
	}

	s.sizeBytes = total
	if total > 0 {
		atomic.AddInt64(&m.StorageSizeBytes, total)
	}
	if count > 0 {
		atomic.AddInt64(&m.ChunksCurrent, count)
	}

	return s, nil
}

// Write 는 직렬화된 이벤트 한 줄을 카테고리의 open 파일에 append 한다.
// O_APPEND 이므로 rollover 의 Truncate 와 교차해도 offset 꼬임이 없다.
func (s *FileStore) Write(category, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openFileLocked(category)
	if err != nil {
		return err
	}

	_, err = f.WriteString(line + "\n")
	return err
}

// Rollover 는 모든 카테고리의 open 파일을 gzip chunk 로 sealing 한다.
// open 파일이 비어 있으면 해당 카테고리는 건너뛴다 (빈 chunk 금지).
func (s *FileStore) Rollover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, cat := range s.categoriesLocked() {
		if err := s.sealLocked(cat); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Read 는 카테고리의 업로드 대기 chunk handle 들을
// 쉼표로 join 한 문자열로 반환한다 (오래된 것부터).
// TTL(ChunkMaxAge) 초과 chunk 는 이 시점에 삭제하고 목록에서 제외한다.
func (s *FileStore) Read(category string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.cfg.StorageDir, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl.gz") {
			continue
		}

		// --- TTL 판단: 파일명 prefix 의 Unix timestamp 기반 ---
		if s.cfg.ChunkMaxAge > 0 {
			if sec, ok := extractUnixFromFilename(name); ok {
				age := time.Duration(timecache.Unix()-sec) * time.Second
				if age > s.cfg.ChunkMaxAge {
					s.removeChunkLocked(filepath.Join(dir, name))
					atomic.AddInt64(&s.metrics.ChunksExpiredTotal, 1)
					log.Printf("[INFO] chunk TTL expired → deleted=%s age=%s", name, age.String())
					continue
				}
			}
			// filename 에서 unix 를 읽지 못하면 TTL 판단은 skip 하고 계속 진행
		}

		names = append(names, name)
	}

	if len(names) == 0 {
		return ""
	}

	// lexicographical sort → timestamp 순 정렬
	sort.Strings(names)

	handles := make([]string, 0, len(names))
	for _, name := range names {
		handles = append(handles, filepath.Join(dir, name))
	}
	return strings.Join(handles, ",")
}

// ReadBytes 는 chunk 의 raw bytes 를 읽는다.
// 파일이 사라졌거나 비어 있으면 (이미 소비된 stale handle) ok=false.
func (s *FileStore) ReadBytes(handle string) ([]byte, bool) {
	data, err := os.ReadFile(handle)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Remove 는 업로드 성공이 확인된 chunk 를 삭제한다.
// 삭제까지 완료되어야 true (FlushSync 의 성공 판정 기준).
func (s *FileStore) Remove(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeChunkLocked(handle)
}

// Close 는 카테고리별 open 파일 핸들을 닫는다.
// 프로세스 종료 직전 정리용이며, 닫은 뒤의 Write 는 파일을 다시 연다.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for cat, f := range s.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.open, cat)
	}
	return firstErr
}

// ------------------------------------------------------------
// 내부 구현 (mu 보유 상태에서만 호출)
// ------------------------------------------------------------

func (s *FileStore) openFileLocked(category string) (*os.File, error) {
	if f, ok := s.open[category]; ok {
		return f, nil
	}

	dir := filepath.Join(s.cfg.StorageDir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, openName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}

	s.open[category] = f
	return f, nil
}

// sealLocked 는 한 카테고리의 open 파일을 gzip chunk 로 만든다.
//  1. open 파일 전체 읽기 (비어 있으면 종료)
//  2. pool 의 gzip.Writer 로 압축
//  3. 용량 확보 (가장 오래된 chunk 부터 eviction)
//  4. chunk 파일 기록 후 open 파일 truncate
func (s *FileStore) sealLocked(category string) error {
	dir := filepath.Join(s.cfg.StorageDir, category)
	openPath := filepath.Join(dir, openName)

	raw, err := os.ReadFile(openPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	// --- gzip sealing (pool 의 buffer / writer 재사용) ---
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	if _, err := gz.Write(raw); err != nil {
		_ = gz.Close()
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return err
	}
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return err
	}
	pool.GzipPool.Put(gz)

	// buf 는 pool 로 돌아가 재사용되므로 caller 소유 slice 로 복사
	sealed := make([]byte, buf.Len())
	copy(sealed, buf.Bytes())
	pool.PutBuffer(buf)

	size := int64(len(sealed))

	// --- 용량 확보: 실패 시 새 chunk 를 drop (서버 DLQ 와 동일 정책) ---
	if !s.ensureCapacityLocked(size) {
		log.Printf("[ERROR] storage full → chunk dropped bytes=%d category=%s", size, category)
		atomic.AddInt64(&s.metrics.ChunksEvictedTotal, 1)
		return s.truncateOpenLocked(category, openPath)
	}

	chunkPath := filepath.Join(dir, NewChunkName(s.cfg.InstanceID))
	if err := os.WriteFile(chunkPath, sealed, 0o600); err != nil {
		return err
	}

	s.sizeBytes += size
	atomic.AddInt64(&s.metrics.StorageSizeBytes, size)
	atomic.AddInt64(&s.metrics.ChunksCurrent, 1)

	return s.truncateOpenLocked(category, openPath)
}

// truncateOpenLocked 는 sealing 이 끝난 open 파일을 비운다.
// 핸들이 열려 있으면 핸들 기준, 아니면 경로 기준으로 truncate.
func (s *FileStore) truncateOpenLocked(category, openPath string) error {
	if f, ok := s.open[category]; ok {
		return f.Truncate(0)
	}
	return os.Truncate(openPath, 0)
}

// ensureCapacityLocked 는 StorageMaxBytes 를 초과하지 않도록
// 가장 오래된 chunk 부터 삭제한다.
// 더 이상 지울 chunk 가 없으면 false 를 반환한다.
func (s *FileStore) ensureCapacityLocked(incoming int64) bool {
	max := s.cfg.StorageMaxBytes
	if max <= 0 {
		return true
	}

	for {
		if s.sizeBytes+incoming <= max {
			return true
		}

		oldest := s.pickOldestLocked()
		if oldest == "" {
			return false
		}

		if s.removeChunkLocked(oldest) {
			atomic.AddInt64(&s.metrics.ChunksEvictedTotal, 1)
			log.Printf("[WARN] storage capacity → removed=%s", filepath.Base(oldest))
		} else {
			return false
		}
	}
}

// pickOldestLocked 는 전체 카테고리를 통틀어
// 파일명 기준(=timestamp 기준)으로 가장 오래된 chunk 경로를 반환한다.
//
// 주의:
//   - 파일 시스템은 엔트리 목록을 정렬해주지 않는다.
//   - chunk 파일명은 <unix>_<instance>_<counter>.jsonl.gz 이므로
//     문자열 정렬 = 시간 정렬 = 처리 순서 보장이 가능하다.
func (s *FileStore) pickOldestLocked() string {
	var oldestName, oldestPath string

	for _, cat := range s.categoriesLocked() {
		dir := filepath.Join(s.cfg.StorageDir, cat)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".jsonl.gz") {
				continue
			}
			if oldestName == "" || name < oldestName {
				oldestName = name
				oldestPath = filepath.Join(dir, name)
			}
		}
	}

	return oldestPath
}

// removeChunkLocked 는 chunk 파일을 삭제하고 용량 집계를 갱신한다.
func (s *FileStore) removeChunkLocked(handle string) bool {
	info, err := os.Stat(handle)
	if err != nil {
		return false
	}
	size := info.Size()

	if err := os.Remove(handle); err != nil {
		log.Printf("[WARN] chunk remove failed: %s err=%v", filepath.Base(handle), err)
		return false
	}

	s.sizeBytes -= size
	atomic.AddInt64(&s.metrics.StorageSizeBytes, -size)
	atomic.AddInt64(&s.metrics.ChunksCurrent, -1)
	return true
}

// categoriesLocked 는 열린 핸들과 디스크 양쪽에서 카테고리 목록을 모은다.
// (크래시 후 재시작하면 핸들은 없지만 디스크에는 카테고리가 남아 있다)
func (s *FileStore) categoriesLocked() []string {
	seen := make(map[string]bool)
	for cat := range s.open {
		seen[cat] = true
	}
	for _, cat := range s.categoriesOnDisk() {
		seen[cat] = true
	}

	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

func (s *FileStore) categoriesOnDisk() []string {
	entries, err := os.ReadDir(s.cfg.StorageDir)
	if err != nil {
		return nil
	}

	var cats []string
	for _, e := range entries {
		if e.IsDir() {
			cats = append(cats, e.Name())
		}
	}
	return cats
}
