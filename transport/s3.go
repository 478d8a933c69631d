// transport/s3.go
package transport

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"estat-client/config"
	"estat-client/internal/timecache"
	"estat-client/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Transport 는 HTTP 수집 엔드포인트 대신 chunk 를 S3 에 직접 올리는
// Transport 구현이다. 서버 사이드(배치 잡, 수집 프록시 등)에 임베드되어
// ingest 서버를 거치지 않고 RAW 버킷으로 바로 쓰는 환경용.
//
// Retry 정책 단일화
// --------------------------------------------
// AWS SDK v2 기본 retry 는 서비스 상황에 따라 3회까지 수행되며,
// 코드 레벨 retry 와 겹치면 예측 불가능한 처리 지연이 발생한다.
//
// → SDK Retry 는 코드에서 0으로 고정한다.
// → "재시도 횟수"는 오직 애플리케이션 레벨(UploadAttempts)만 사용한다.
// --------------------------------------------
type S3Transport struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *s3.Client
}

// NewS3 는 AWS SDK Config 를 초기화하고 S3 client 를 생성한다.
// 임베디드 SDK 이므로 실패 시 fatal 대신 error 를 돌려준다.
func NewS3(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*S3Transport, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	return &S3Transport{
		cfg:     cfg,
		metrics: m,
		client:  client,
	}, nil
}

// Upload 은 chunk 를 파티션된 S3 key 로 업로드한다.
// - 각 시도는 UploadTimeout 으로 제한 + backoff (최대 2초)
// - shutdown-safe: ctx.Done() 시 즉시 중단
//
// body 는 매 재시도마다 reader 를 새로 만들어야 하므로 bytes.NewReader 사용.
func (t *S3Transport) Upload(ctx context.Context, body []byte) bool {
	attempts := t.cfg.UploadAttempts
	if attempts <= 0 {
		attempts = 1
	}

	key := t.buildKey()
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= attempts; attempt++ {

		// shutdown 체크
		select {
		case <-ctx.Done():
			return false
		default:
		}

		reader := bytes.NewReader(body)

		if err := t.putObject(ctx, key, reader, int64(len(body))); err == nil {
			return true
		} else {
			atomic.AddInt64(&t.metrics.UploadAttemptErrorsTotal, 1)
			log.Printf("[WARN] s3 put attempt %d/%d failed: key=%s err=%v", attempt, attempts, key, err)
		}

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

// buildKey 는 표준화된 S3 Key 를 만든다.
// S3 폴더 구조(Partitioning):
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<unix>_<instance>_<counter>.jsonl.gz
//
// Athena / Glue 파티션 스캔 비용을 줄이기 위한 표준적인 구조.
// (estat-ingest 서버가 쓰는 RAW 파티션 규칙과 동일)
var s3KeyCounter uint64

func (t *S3Transport) buildKey() string {
	c := atomic.AddUint64(&s3KeyCounter, 1) % 1_000_000
	name := fmt.Sprintf("%d_%s_%06d.jsonl.gz", timecache.Unix(), t.cfg.InstanceID, c)
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", t.cfg.RawPrefix, timecache.DT(), timecache.HR(), name)
}

// putObject
// ---------
// 실제 AWS S3 PutObject 호출을 수행한다.
// - retries 는 caller 에서 제어하며 여기서는 1회 호출만 담당
// - 각 호출은 컨텍스트 기반 timeout 을 가진다
func (t *S3Transport) putObject(
	ctx context.Context,
	key string,
	body *bytes.Reader,
	size int64,
) error {

	// 1회 시도당 timeout 적용
	ctx2, cancel := context.WithTimeout(ctx, t.cfg.UploadTimeout)
	defer cancel()

	_, err := t.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(t.cfg.RawBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})

	return err
}
