package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/legal-simplifier/internal/async"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/export"
	"github.com/joseph-ayodele/legal-simplifier/internal/extract"
	"github.com/joseph-ayodele/legal-simplifier/internal/ingest"
	"github.com/joseph-ayodele/legal-simplifier/internal/pipeline"
	repo "github.com/joseph-ayodele/legal-simplifier/internal/repository"
	svc "github.com/joseph-ayodele/legal-simplifier/internal/server"
	"github.com/joseph-ayodele/legal-simplifier/internal/simplify"
	"github.com/joseph-ayodele/legal-simplifier/internal/storage"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()

	store, err := storage.NewDiskStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		logger.Error("failed to open upload store", "dir", cfg.Storage.UploadDir, "error", err)
		os.Exit(1)
	}

	simp, err := loadSimplifier(cfg.Pipeline.SimplifierRulesFile, logger)
	if err != nil {
		logger.Error("failed to load simplifier rules", "file", cfg.Pipeline.SimplifierRulesFile, "error", err)
		os.Exit(1)
	}

	docsRepo := repo.NewDocumentRepository(db, logger)
	extractor := extract.NewExtractor(extract.Config{MaxConcurrent: cfg.Pipeline.ExtractConcurrency}, logger)
	pipe := pipeline.New(extractor, simp, cfg.Pipeline.MaxSentences, logger)
	processor := pipeline.NewProcessor(docsRepo, store, pipe, logger)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	ingestor := ingest.NewFSIngestor(docsRepo, store, cfg.Storage.MaxUploadBytes, logger)
	ingestor.Deduplicate = cfg.Storage.Deduplicate

	if cfg.Storage.InboxDir != "" {
		if err := watchInbox(ctx, cfg.Storage.InboxDir, ingestor, queue, logger); err != nil {
			logger.Error("failed to watch inbox", "dir", cfg.Storage.InboxDir, "error", err)
			os.Exit(1)
		}
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(svc.RecoveryInterceptor(logger)))

	documents := svc.NewDocumentsService(ingestor, docsRepo, store, processor, queue, export.NewService(docsRepo, logger), logger)
	svc.RegisterDocumentsServer(grpcServer, documents)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("legaldocd listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

func loadSimplifier(path string, logger *slog.Logger) (*simplify.Simplifier, error) {
	if path == "" {
		return simplify.MustDefault(), nil
	}
	rules, err := simplify.LoadRules(path)
	if err != nil {
		return nil, err
	}
	logger.Info("simplifier rules loaded", "file", path, "rules", len(rules))
	return simplify.New(rules)
}

// watchInbox ingests files dropped into dir and queues them for processing.
func watchInbox(ctx context.Context, dir string, ingestor ingest.Ingestor, queue async.Queue, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", dir)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox.watch.error", "error", err)
			case path, ok := <-paths:
				if !ok {
					return
				}
				res, err := ingestor.IngestPath(ctx, path, "")
				if err != nil {
					logger.Error("inbox.ingest.failed", "path", path, "error", err)
					continue
				}
				if res.Deduplicated {
					continue
				}
				if err := queue.Enqueue(ctx, async.Job{DocumentID: res.DocumentID, SubmittedAt: time.Now().UTC()}); err != nil {
					logger.Error("inbox.enqueue.failed", "document_id", res.DocumentID, "error", err)
				}
			}
		}
	}()
	return nil
}
