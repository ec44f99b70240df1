package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"prelabel/internal/config"
	"prelabel/internal/core/annotate"
	"prelabel/internal/core/job"
	"prelabel/internal/core/prelabel"
	"prelabel/internal/core/render"
	"prelabel/internal/logger"
	"prelabel/internal/platform/eino"
	rds "prelabel/internal/platform/redis"
	tasks "prelabel/internal/platform/tasks"
	"prelabel/internal/server"
	"prelabel/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[prelabel] starting at %s (env=%s, queue=%s, workers=%d)\n", cfg.HTTPAddr, cfg.AppEnv, cfg.QueueBackend, cfg.WorkerCount)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Renderer
	var renderer render.Renderer
	switch cfg.Renderer {
	case "static":
		renderer = render.NewStatic()
	default:
		pw := render.NewPlaywright()
		defer pw.Close()
		renderer = pw
	}

	// Eino (LLM) service initialized from environment variables
	einoSvc, err := eino.NewService(eino.Config{
		Provider:          cfg.LLMProvider,
		APIKey:            cfg.GeminiAPIKey,
		Timeout:           cfg.LLMTimeout,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to initialize Eino service: %v", err)
	}
	if err := einoSvc.Warm(context.Background(), cfg.DefaultLLMModel); err != nil {
		logr.LogWarnf("default model %s not ready: %v", cfg.DefaultLLMModel, err)
	}

	// Annotation sinks
	archive, err := annotate.NewArchive(annotate.ArchiveConfig{
		SupabaseURL:        cfg.SupabaseURL,
		SupabaseServiceKey: cfg.SupabaseServiceKey,
		Bucket:             cfg.SupabaseBucket,
		DataDir:            cfg.DataDir,
		Production:         cfg.AppEnv == "production",
	})
	if err != nil {
		log.Fatal(err)
	}
	sinks := annotate.Multi{archive}
	if cfg.LabelStudioURL != "" {
		sinks = append(sinks, annotate.NewLabelStudio(cfg.LabelStudioURL, cfg.LabelStudioToken))
	} else {
		logr.LogWarnf("LABEL_STUDIO_URL not set; predictions are only archived")
	}

	// Core services
	pipeline := prelabel.NewService(renderer, einoSvc, sinks, cfg.PromptTextFormat)
	store := job.NewStore(redisSvc, cfg.JobRetention)
	runner := job.NewRunner(store, pipeline)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	var (
		queue       job.Queue
		asynqServer *asynq.Server
		pool        *job.Pool
		taskClient  *tasks.Client
	)
	switch cfg.QueueBackend {
	case "local":
		pool = job.NewPool(runner, cfg.WorkerCount, 64)
		pool.Start(workerCtx)
		queue = pool
	default:
		taskClient = tasks.New(redisSvc)
		defer taskClient.Close()
		queue = job.NewAsynqQueue(taskClient, cfg.QueueName, cfg.LLMTimeout)

		asynqServer = asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
			Concurrency: cfg.WorkerCount,
			Queues:      map[string]int{cfg.QueueName: 1},
		})
		mux := worker.NewMux()
		mux.HandleFunc(tasks.TaskTypePrelabel, runner.HandleTask)
		go func() {
			if err := asynqServer.Start(mux.Mux()); err != nil {
				log.Printf("[worker] stopped: %v\n", err)
			}
		}()
	}
	jobs := job.NewService(store, queue)

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Prelabel Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	healthHandler := server.RegisterRoutes(app, server.Dependencies{Jobs: jobs, Redis: redisSvc})
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-shutdown
		logr.LogInfo("Shutting down...")
		_ = app.ShutdownWithTimeout(5 * time.Second)
		workerCancel()
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
		if pool != nil {
			pool.Stop()
		}
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
	<-stopped
}
