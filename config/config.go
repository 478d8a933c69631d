// config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"time"
)

// Config
//
// 파이프라인 실행에 필요한 모든 설정 값을 보관하는 구조체.
// 호스트 애플리케이션이 코드로 직접 채우거나, Default() 이후
// FromEnv() 로 환경 변수 override 를 적용한다.
// 파이프라인에 전달된 이후에는 변경되지 않는 불변(read-only) 설정들이다.
type Config struct {

	// ---------------------------
	// 수집 엔드포인트
	// ---------------------------

	Endpoint string // ingest 서버 수집 엔드포인트 URL (예: https://collect.example.com/collect)
	WriteKey string // 수집 인증용 write key (빈 값이면 헤더 미첨부)

	// ---------------------------
	// 서비스 식별자 / 로깅
	// ---------------------------

	ServiceName string // 로그 공통 필드 service 값
	InstanceID  string // 파이프라인 인스턴스 고유 ID (호스트명 기반, 실패 시 랜덤 hex)
	LogLevel    string // zerolog 최소 레벨 ("debug", "info", ...)
	LogPretty   bool   // true: 개발용 콘솔 출력 / false: 운영용 JSON 출력
	LogSampleN  uint32 // Debug/Info 로그 샘플링 N (1이면 샘플링 없음)

	// ---------------------------
	// 큐 / 동작 모드
	// ---------------------------
	// 큐는 개념적으로 unbounded 이지만, 메모리 보호를 위해
	// 버퍼 크기를 설정 가능하게 둔다. ingest 큐가 가득 차면
	// Submit 은 블로킹하지 않고 이벤트를 drop 한다 (로그 + 카운터).
	// ---------------------------

	IngestQueueSize int  // ingest 큐 버퍼 크기
	UploadQueueSize int  // upload trigger 큐 버퍼 크기
	SyncMode        bool // true: 백그라운드 루프 없이 SubmitSync/FlushSync 만 사용

	// ---------------------------
	// 로컬 chunk 저장소
	// ---------------------------

	StorageDir      string        // chunk 파일 저장 디렉토리
	StorageMaxBytes int64         // sealed chunk 전체 허용 용량 (0 이하 = 무제한)
	ChunkMaxAge     time.Duration // chunk TTL (0 이하 = 무제한, 초과 시 삭제)

	// ---------------------------
	// 업로드 설정
	// ---------------------------
	// Retry 정책 단일화
	// --------------------------------------------
	// 재시도는 전적으로 Transport 내부에서만 수행한다.
	// 파이프라인 코어는 chunk 당 Upload 호출을 pass 마다 1회만 하고,
	// 실패한 chunk 는 다음 flush pass 에서 자연스럽게 다시 읽힌다.
	// --------------------------------------------

	UploadTimeout  time.Duration // Transport 시도당 timeout
	UploadAttempts int           // Transport 내부 재시도 횟수

	// ---------------------------
	// S3 Transport (선택)
	// ---------------------------

	AWSRegion string // AWS 리전 (S3 transport 사용 시 필수)
	RawBucket string // chunk 가 저장될 S3 버킷 이름
	RawPrefix string // S3 저장 경로 prefix (예: raw/)
}

// Default
//
// 임베디드 SDK 로서 바로 동작 가능한 기본값을 반환한다.
// 운영 배포에서는 Endpoint / WriteKey 정도만 채우면 된다.
func Default() Config {
	return Config{
		Endpoint: "http://localhost:8080/collect",

		ServiceName: "estat-client",
		InstanceID:  fallbackInstanceID(),
		LogLevel:    "info",
		LogPretty:   false,
		LogSampleN:  1,

		IngestQueueSize: 1000,
		UploadQueueSize: 16,

		StorageDir:      filepathDefault(),
		StorageMaxBytes: 32 * 1024 * 1024,
		ChunkMaxAge:     0,

		UploadTimeout:  5 * time.Second,
		UploadAttempts: 3,

		RawPrefix: "raw",
	}
}

// FromEnv
//
// Default() 위에 환경 변수 override 를 적용한다.
// 서버 프로세스(estat-ingest)와 달리 클라이언트 SDK 는 호스트 프로세스를
// 죽일 수 없으므로 fail-fast(log.Fatal) 대신 "없으면 기본값 유지" 전략을 쓴다.
// 형식이 잘못된 값도 조용히 무시한다.
func FromEnv() Config {
	cfg := Default()

	envStr("ESTAT_ENDPOINT", &cfg.Endpoint)
	envStr("ESTAT_WRITE_KEY", &cfg.WriteKey)

	envStr("ESTAT_SERVICE_NAME", &cfg.ServiceName)
	envStr("ESTAT_INSTANCE_ID", &cfg.InstanceID)
	envStr("ESTAT_LOG_LEVEL", &cfg.LogLevel)
	envBool("ESTAT_LOG_PRETTY", &cfg.LogPretty)
	envUint32("ESTAT_LOG_SAMPLE_N", &cfg.LogSampleN)

	envInt("ESTAT_INGEST_QUEUE", &cfg.IngestQueueSize)
	envInt("ESTAT_UPLOAD_QUEUE", &cfg.UploadQueueSize)
	envBool("ESTAT_SYNC_MODE", &cfg.SyncMode)

	envStr("ESTAT_STORAGE_DIR", &cfg.StorageDir)
	envInt64("ESTAT_STORAGE_MAX_BYTES", &cfg.StorageMaxBytes)
	envDur("ESTAT_CHUNK_MAX_AGE", &cfg.ChunkMaxAge)

	envDur("ESTAT_UPLOAD_TIMEOUT", &cfg.UploadTimeout)
	envInt("ESTAT_UPLOAD_ATTEMPTS", &cfg.UploadAttempts)

	envStr("AWS_REGION", &cfg.AWSRegion)
	envStr("ESTAT_RAW_BUCKET", &cfg.RawBucket)
	envStr("ESTAT_RAW_PREFIX", &cfg.RawPrefix)

	return cfg
}

// envStr / envInt / envInt64 / envUint32 / envDur / envBool
//
// 공통 패턴.
// 환경변수가 존재하고 형식이 올바를 때만 대상 값을 덮어쓴다.
func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envUint32(key string, dst *uint32) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func envDur(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// fallbackInstanceID
//
// 이 파이프라인 인스턴스를 식별하는 고유 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	// 랜덤 6바이트 → 12자리 hex
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// filepathDefault
//
// 저장 디렉토리 기본값. 호스트가 지정하지 않으면
// 작업 디렉토리 아래 .estat 에 쌓는다.
func filepathDefault() string {
	return ".estat"
}
