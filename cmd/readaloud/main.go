package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"readaloud/internal/app"
	"readaloud/internal/config"
	"readaloud/internal/ratelimit"
	"readaloud/internal/server"
	"readaloud/internal/util"
	"readaloud/pkg/library"
	"readaloud/pkg/storage"
	"readaloud/pkg/tts"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	store, err := library.Open(cfg.DataFile)
	if err != nil {
		util.Fatal("failed to open library", "err", err)
	}

	var audio storage.AudioStore
	switch cfg.StorageBackend {
	case "minio":
		audio, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		audio, err = storage.NewFileStore(cfg.OutputDir)
	}
	if err != nil {
		util.Fatal("failed to init audio storage", "err", err)
	}

	ttsClient := tts.NewClient(cfg.TTSBaseURL, cfg.TTSAPIKey, cfg.TTSModel, cfg.DefaultVoice, cfg.DefaultSpeed)

	var rateLimiter *ratelimit.Limiter
	if cfg.ChatRateLimit > 0 {
		rateLimiter, err = ratelimit.New(ratelimit.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Prefix:   "readaloud:ratelimit",
			Limit:    cfg.ChatRateLimit,
			Window:   time.Duration(cfg.ChatRateWindowSeconds) * time.Second,
		})
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
	}

	proxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	appCore := app.New(app.Config{
		Store:        store,
		Audio:        audio,
		Synth:        func(voice string, speed float64) tts.Synthesizer { return ttsClient.WithVoice(voice, speed) },
		SegmentLimit: cfg.SegmentLimit,
		SynthWorkers: cfg.SynthConcurrency,
		HistoryTurns: cfg.HistoryTurns,
	})

	httpServer := server.New(server.Config{
		App:         appCore,
		Limiter: rateLimiter,
		Proxies:     proxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: chat responses stream over SSE for as long as
		// the upstream keeps producing deltas.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("readaloud server listening", "addr", addr, "storage", cfg.StorageBackend, "data_file", store.Path())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
