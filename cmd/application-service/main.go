// cmd/application-service/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"application-wizard/internal/common/aws"
	"application-wizard/internal/common/camunda"
	"application-wizard/internal/common/config"
	"application-wizard/internal/common/database"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/observability"
	"application-wizard/internal/facility"
	"application-wizard/internal/phone"
	"application-wizard/internal/rules"
	"application-wizard/internal/stateserver"
	"application-wizard/internal/wizard"

	as "application-wizard/internal/workers/application/assemble-submission"
	cf "application-wizard/internal/workers/application/compute-facility"
	ca "application-wizard/internal/workers/application/create-application-record"
	sn "application-wizard/internal/workers/application/send-notification"
	vd "application-wizard/internal/workers/application/validate-application-draft"
)

const purgeInterval = 15 * time.Minute

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.WithError(err).Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	log.Info("Starting application service...", nil)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()
	if err := obs.EnableTracing(cfg.App.Name, cfg.Tracing); err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Flow registry ---
	flows, err := wizard.LoadFlows(cfg.Wizard.FlowRegistryPath)
	if err != nil {
		zapLog.Fatal("flow registry invalid", zap.Error(err))
	}
	log.Info("Flow registry loaded", map[string]interface{}{
		"version": flows.Version,
		"flows":   len(flows.Flows),
	})

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	log.Info("Redis connected successfully", nil)

	// --- Wizard core ---
	calc := facility.NewCalculator(cfg.Facility, nil)
	phones := phone.NewCanonicalizer(cfg.Sync.CountryCode)
	ruleset := rules.NewRuleset(phones, log)
	assembler := wizard.NewAssembler(calc, ruleset, nil)

	// --- State API ---
	server := stateserver.NewServer(
		cfg.StateAPI,
		stateserver.NewPostgresRepository(pg.GetDB(), log),
		stateserver.NewCache(redis.GetClient(), config.GetDuration(cfg.StateAPI.CacheTTL)),
		redis.Locker(),
		obs,
		nil,
		log,
	)

	// --- Zeebe workers (optional) ---
	if cfg.Camunda.Enabled {
		client, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer client.Close()

		workers := camunda.NewWorkers(client.Zeebe(), obs, log)
		defer workers.Close()

		wcfg := config.GetWorkerConfig(cfg, cf.TaskType)
		workers.Open(cf.TaskType, wcfg, cf.NewHandler(cf.LoadConfig(wcfg), calc, log))

		wcfg = config.GetWorkerConfig(cfg, vd.TaskType)
		workers.Open(vd.TaskType, wcfg, vd.NewHandler(vd.LoadConfig(wcfg), ruleset, log))

		wcfg = config.GetWorkerConfig(cfg, as.TaskType)
		workers.Open(as.TaskType, wcfg, as.NewHandler(as.LoadConfig(wcfg), assembler, log))

		wcfg = config.GetWorkerConfig(cfg, ca.TaskType)
		workers.Open(ca.TaskType, wcfg, ca.NewHandler(ca.LoadConfig(wcfg), pg.GetDB(), log))

		sms, email, err := notifiers(ctx, cfg.Notify)
		if err != nil {
			zapLog.Fatal("notification clients failed", zap.Error(err))
		}
		wcfg = config.GetWorkerConfig(cfg, sn.TaskType)
		workers.Open(sn.TaskType, wcfg, sn.NewHandler(sn.LoadConfig(wcfg, cfg.Notify), sms, email, phones, log))

		log.Info("Workers registered", map[string]interface{}{"count": workers.Len()})
	}

	go purgeExpired(ctx, server)

	if err := server.Run(ctx, cfg.Server); err != nil {
		zapLog.Fatal("state api failed", zap.Error(err))
	}
	log.Info("Application service stopped gracefully", nil)
}

// notifiers builds the AWS senders for the enabled channels. A nil sender
// leaves its channel off.
func notifiers(ctx context.Context, cfg config.NotifyConfig) (sn.SMSSender, sn.EmailSender, error) {
	var sms sn.SMSSender
	var email sn.EmailSender
	if cfg.SMSEnabled {
		client, err := aws.NewSNSClient(ctx, cfg.AWSRegion, cfg.SenderID)
		if err != nil {
			return nil, nil, fmt.Errorf("sns client: %w", err)
		}
		sms = client
	}
	if cfg.EmailEnabled {
		client, err := aws.NewSESClient(ctx, cfg.AWSRegion, cfg.FromEmail)
		if err != nil {
			return nil, nil, fmt.Errorf("ses client: %w", err)
		}
		email = client
	}
	return sms, email, nil
}

func purgeExpired(ctx context.Context, server *stateserver.Server) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = server.PurgeExpired(ctx)
		}
	}
}
