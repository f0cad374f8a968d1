// cmd/intake-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"loan-intake/internal/catalog"
	commonaws "loan-intake/internal/common/aws"
	"loan-intake/internal/common/camunda"
	"loan-intake/internal/common/config"
	"loan-intake/internal/common/database"
	"loan-intake/internal/common/httpclient"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/observability"
	"loan-intake/internal/common/staffapi"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/lending"
	"loan-intake/pkg/registry"

	// Matching workers
	fep "loan-intake/internal/workers/matching/filter-eligible-products"
	rc "loan-intake/internal/workers/matching/recommend-categories"
	rdr "loan-intake/internal/workers/matching/resolve-document-requirements"

	// Application workers
	css "loan-intake/internal/workers/application/check-signing-status"
	sn "loan-intake/internal/workers/application/send-notification"
	sa "loan-intake/internal/workers/application/submit-application"
	ud "loan-intake/internal/workers/application/upload-document"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting intake manager...", zap.String("environment", cfg.App.Environment))

	serviceName := cfg.App.Name
	if serviceName == "" {
		serviceName = "intake-manager"
	}
	obs := observability.New(serviceName, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	var zb *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zb, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("ledger schema", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if err := esClient.EnsureIndex(ctx, cfg.Catalog.SnapshotIndex, catalog.SnapshotMapping); err != nil {
		// The snapshot tier is a fallback; the workers run without it.
		zapLog.Warn("catalog snapshot index unavailable", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Staff API & catalog ---
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = config.GetDuration(cfg.StaffAPI.Timeout)
	staff, err := staffapi.NewClient(staffapi.Config{
		BaseURL:     cfg.StaffAPI.BaseURL,
		BearerToken: cfg.StaffAPI.BearerToken,
		HTTPClient:  httpclient.New(httpCfg),
	})
	if err != nil {
		zapLog.Fatal("staff api client", zap.Error(err))
	}

	products := catalog.New(catalog.Config{
		CacheKey:      cfg.Catalog.CacheKey,
		CacheTTL:      config.GetDuration(cfg.Catalog.CacheTTL),
		SnapshotIndex: cfg.Catalog.SnapshotIndex,
	}, staff, rdb.Client, esClient.Client, log).WithObservability(obs)

	if res, err := products.Refresh(ctx); err != nil {
		zapLog.Warn("catalog warm-up failed", zap.Error(err))
	} else {
		zapLog.Info("catalog warmed",
			zap.Int("products", len(res.Products)),
			zap.String("source", string(res.Source)),
			zap.Bool("degraded", res.Degraded),
		)
	}

	// --- Input schemas ---
	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		zapLog.Fatal("activity registry", zap.Error(err))
	}
	for _, problem := range reg.Check() {
		zapLog.Warn("activity registry problem", zap.String("problem", problem))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("input schemas", zap.Error(err))
	}

	// --- AWS notification channels ---
	var (
		sesClient sn.SESService
		snsClient sn.SNSService
	)
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		clients, err := commonaws.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("aws clients unavailable, notifications disabled", zap.Error(err))
		} else {
			sesClient = clients.SES
			snsClient = clients.SNS
		}
	}

	zapLog.Info("All external service clients initialized")

	// --- Workers ---
	// Worker config wins; the registry timeout covers task types the config omits.
	timeout := func(taskType string) time.Duration {
		if d := config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout); d > 0 {
			return d
		}
		if act, ok := reg.Find(taskType); ok {
			return act.TimeoutDuration(30 * time.Second)
		}
		return 30 * time.Second
	}
	limits := lending.ValidationLimits{
		MinSize:        cfg.Documents.MinSize,
		MaxSize:        cfg.Documents.MaxSize,
		SuspiciousSize: cfg.Documents.SuspiciousSize,
	}

	handlers := []struct {
		taskType string
		handle   worker.JobHandler
	}{
		{fep.TaskType, fep.NewHandler(&fep.Config{Timeout: timeout(fep.TaskType)}, products, log).Handle},
		{rdr.TaskType, rdr.NewHandler(&rdr.Config{Timeout: timeout(rdr.TaskType)}, products, log).Handle},
		{rc.TaskType, rc.NewHandler(&rc.Config{Timeout: timeout(rc.TaskType)}, products, log).Handle},
		{sa.TaskType, sa.NewHandler(&sa.Config{Timeout: timeout(sa.TaskType)}, staff, pg.DB, validator, log).Handle},
		{ud.TaskType, ud.NewHandler(&ud.Config{Timeout: timeout(ud.TaskType), Limits: limits}, staff, pg.DB, log).Handle},
		{css.TaskType, css.NewHandler(&css.Config{
			Timeout:           timeout(css.TaskType),
			PollInterval:      config.GetDuration(cfg.Signing.PollInterval),
			MaxAttempts:       cfg.Signing.MaxAttempts,
			OverrideKeyPrefix: cfg.Signing.OverrideKeyPrefix,
		}, staff, rdb.Client, log).Handle},
		{sn.TaskType, sn.NewHandler(&sn.Config{
			EmailEnabled: cfg.Notifications.Email.Enabled,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			FromEmail:    cfg.Notifications.Email.FromEmail,
			SenderID:     cfg.Notifications.SMS.SenderID,
			PortalURL:    cfg.Notifications.PortalURL,
			Timeout:      timeout(sn.TaskType),
		}, sesClient, snsClient, pg.DB, log).Handle},
	}

	var workers []worker.JobWorker
	for _, h := range handlers {
		act, ok := reg.Find(h.taskType)
		if !ok {
			zapLog.Warn("worker has no registry entry", zap.String("taskType", h.taskType))
		} else if !act.Enabled() {
			zapLog.Info("activity not enabled, skipping worker",
				zap.String("taskType", h.taskType),
				zap.String("status", act.ImplementationStatus),
			)
			continue
		}
		w := camunda.StartWorker(zb.GetClient(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handle, obs, log)
		if w != nil {
			workers = append(workers, w)
		}
	}
	zapLog.Info("workers registered", zap.Int("running", len(workers)), zap.Int("total", len(handlers)))

	// --- Health & Metrics Server ---
	srv := newServer(cfg.Server.Address, readinessChecks{
		"zeebe":    zb.HealthCheck,
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}, log)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != errServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zb.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
}
