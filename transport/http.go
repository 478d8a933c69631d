// transport/http.go
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"estat-client/config"
	"estat-client/metrics"
)

// HTTPTransport 는 기본 Transport 구현으로,
// chunk 바이트(이미 gzip+JSONL)를 ingest 서버의 수집 엔드포인트로 POST 한다.
//
// - 각 시도는 UploadTimeout 으로 제한
// - 애플리케이션 레벨 재시도 + exponential backoff (최대 2초)
// - shutdown-safe: ctx.Done() 시 즉시 중단
//
// 서버(estat-ingest)가 Content-Encoding: gzip 을 해석하므로
// 여기서는 재압축 없이 chunk 를 그대로 보낸다.
type HTTPTransport struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *http.Client
}

func NewHTTP(cfg config.Config, m *metrics.Metrics) *HTTPTransport {
	return &HTTPTransport{
		cfg:     cfg,
		metrics: m,
		// per-request timeout 은 context 로 걸므로 client 자체는 무제한.
		client: &http.Client{},
	}
}

// Upload 은 chunk 를 수집 엔드포인트로 보낸다.
// 모든 시도가 실패하면 false — chunk 는 호출자가 보존한다.
func (t *HTTPTransport) Upload(ctx context.Context, body []byte) bool {
	attempts := t.cfg.UploadAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= attempts; attempt++ {

		// shutdown 체크
		select {
		case <-ctx.Done():
			return false
		default:
		}

		err := t.post(ctx, body)
		if err == nil {
			return true
		}
		atomic.AddInt64(&t.metrics.UploadAttemptErrorsTotal, 1)
		log.Printf("[WARN] upload attempt %d/%d failed: %v", attempt, attempts, err)

		// backoff 적용 (최대 2초)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return false
}

// post 는 1회 POST 호출만 담당한다. 시도당 timeout 은 여기서 건다.
func (t *HTTPTransport) post(ctx context.Context, body []byte) error {
	ctx2, cancel := context.WithTimeout(ctx, t.cfg.UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Content-Encoding", "gzip")
	if t.cfg.WriteKey != "" {
		req.Header.Set("X-Write-Key", t.cfg.WriteKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// keep-alive 재사용을 위해 body 는 항상 끝까지 비운다
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
