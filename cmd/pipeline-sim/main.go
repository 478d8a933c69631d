package main

import (
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"estat-client/config"
	"estat-client/event"
	"estat-client/internal/logger"
	"estat-client/metrics"
	"estat-client/pipeline"
	"estat-client/policy"
	"estat-client/storage"
	"estat-client/transport"
)

func main() {

	// ====================================================================
	// CPU 설정 (컨테이너 vCPU 특성 대응)
	// ====================================================================
	//
	// 시뮬레이터를 Fargate 류의 제한된 vCPU 환경에서 돌릴 때,
	// Go 런타임이 논리 CPU 전체를 GOMAXPROCS 로 잡으면
	// busy-loop scheduling 으로 오히려 성능이 떨어진다.
	//
	// 재정의 가능: 환경에 맞춰 GOMAXPROCS 환경변수로 조정.
	// ====================================================================
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
	} else {
		runtime.GOMAXPROCS(1) // default: 1 logical CPU
	}

	// ====================================================================
	// Config & Logger & Metrics 초기화
	// ====================================================================
	//
	// - Config: Default() 위에 환경변수 override (ESTAT_* 참고)
	// - Logger: zerolog 전역 설정 + 표준 log 브릿지
	// - Metrics: 파이프라인 내부 카운터 집합
	// ====================================================================
	cfg := config.FromEnv()
	logger.Init(cfg)
	m := metrics.New()

	// ====================================================================
	// 파이프라인 조립
	// ====================================================================
	//
	// 구성 요소:
	//  - FileStore: 로컬 chunk 저장소 (append → rollover → sealed chunk)
	//  - HTTPTransport: ingest 서버 수집 엔드포인트로 POST
	//  - CountPolicy(100) + IntervalPolicy(10s): OR 결합 flush 정책
	// ====================================================================
	store, err := storage.NewFileStore(cfg, m)
	if err != nil {
		log.Fatalf("[FATAL] storage init failed: %v", err)
	}

	tr := transport.NewHTTP(cfg, m)

	p := pipeline.New(cfg, m, store, tr,
		policy.NewCount(100),
		policy.NewInterval(10*time.Second),
	)
	p.Start()

	// ====================================================================
	// Graceful Shutdown
	// ====================================================================
	//
	// SIGTERM/SIGINT 수신 시:
	//   - 이벤트 생성을 멈추고
	//   - 파이프라인 Stop (큐 취소, 루프 종료, 정책 해제)
	//   - 마지막으로 FlushSync 로 잔여 chunk 동기 업로드 시도
	//
	// 이를 통해 종료 직전까지 쌓인 이벤트의 유실을 최소화한다.
	// ====================================================================
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	log.Printf("[INFO] pipeline-sim sending to %s", cfg.Endpoint)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var seq int
loop:
	for {
		select {
		case sig := <-sigCh:
			log.Printf("[INFO] shutdown signal received: %v", sig)
			break loop

		case <-ticker.C:
			seq++
			p.Submit(event.NewTrack("sim_tick", map[string]any{"seq": seq}))
			if seq%500 == 0 {
				p.Submit(event.NewScreen("sim_screen", nil))
				log.Printf("[INFO] submitted=%d\n%s", seq, m.String())
			}
		}
	}

	p.Stop()

	// 종료 직전 잔여 batch 동기 업로드
	if p.FlushSync() {
		log.Println("[INFO] final flush uploaded pending chunks")
	} else {
		log.Println("[INFO] final flush had nothing to upload")
	}

	_ = store.Close()
	log.Println("[INFO] shutdown complete")
}
