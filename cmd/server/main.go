package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/shawn/slack-gpt-tenancy/internal/api"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/dialog"
	"github.com/shawn/slack-gpt-tenancy/internal/installation"
	"github.com/shawn/slack-gpt-tenancy/internal/lifecycle"
	"github.com/shawn/slack-gpt-tenancy/internal/oauth"
	"github.com/shawn/slack-gpt-tenancy/internal/objstore"
	"github.com/shawn/slack-gpt-tenancy/internal/relay"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
	"github.com/shawn/slack-gpt-tenancy/internal/slackapp"
	"github.com/shawn/slack-gpt-tenancy/internal/tasks"
	"github.com/shawn/slack-gpt-tenancy/internal/tenantconfig"
	"github.com/shawn/slack-gpt-tenancy/internal/translate"
	"github.com/shawn/slack-gpt-tenancy/internal/validator"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg, errs := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	for _, err := range errs {
		slog.Warn("config", "err", err)
	}
	if cfg.SlackSigningSecret == "" || cfg.SlackClientID == "" || cfg.SlackClientSecret == "" {
		slog.Error("SLACK_SIGNING_SECRET, SLACK_CLIENT_ID and SLACK_CLIENT_SECRET are required")
		os.Exit(1)
	}
	holder := config.NewHolder(cfg, nil)
	localMode := os.Getenv("LOCAL_MODE") == "true" || cfg.DynamoEndpoint != "" || cfg.S3Endpoint != ""

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// AWS
	var awsOptFns []func(*awsconfig.LoadOptions) error
	if localMode {
		// Static credentials for DynamoDB Local / MinIO
		awsOptFns = append(awsOptFns,
			awsconfig.WithRegion(getenv("AWS_REGION", "us-east-1")),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				getenv("AWS_ACCESS_KEY_ID", "test"),
				getenv("AWS_SECRET_ACCESS_KEY", "test"),
				"",
			)),
		)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptFns...)
	if err != nil {
		slog.Error("load AWS config", "err", err)
		os.Exit(1)
	}
	db := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = &cfg.DynamoEndpoint
		}
	})

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// Stores
	var backend objstore.Store
	var installs installation.Store
	switch cfg.StoreBackend {
	case config.BackendS3:
		if cfg.S3Bucket == "" {
			slog.Error("OPENAI_S3_BUCKET_NAME is required for the s3 backend")
			os.Exit(1)
		}
		s3c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = &cfg.S3Endpoint
				o.UsePathStyle = true
			}
		})
		backend = objstore.NewS3(s3c, cfg.S3Bucket)
	case config.BackendDynamoDB:
		backend = objstore.NewDynamo(db, cfg.DynamoTable)
	case config.BackendRedis:
		backend = objstore.NewRedis(rdb)
	case config.BackendMemory:
		backend = objstore.NewMemory()
	default:
		slog.Error("unknown CONFIG_STORE_BACKEND", "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	if cfg.StoreBackend == config.BackendMemory {
		slog.Warn("memory backend: tenant configs and installations are lost on restart")
		installs = installation.NewMock()
	} else {
		installs = installation.NewDynamo(db, cfg.InstallationTable)
	}
	configs := tenantconfig.New(backend)

	// Components
	runner := tasks.NewRunner(64, time.Duration(cfg.OpenAITimeoutSeconds+30)*time.Second)
	v := validator.New(validator.NewOpenAIProber(holder))
	tr := translate.NewCached(holder)

	app := slackapp.New(slackapp.Options{
		Config:     holder,
		Resolver:   resolver.New(holder, configs),
		Authorizer: slackapp.NewInstallationAuthorizer(installs, slackapp.WebAPIFactory(cfg.SlackAPIURL)),
		Dialog:     dialog.NewController(v, configs, tr),
		Lifecycle:  lifecycle.New(installs, configs),
		Relay:      relay.New(holder),
		Translator: tr,
		Tasks:      runner,
	})
	flow := oauth.NewFlow(holder, oauth.NewRedisStates(rdb), installs, oauth.SlackExchanger{})

	h := api.New(holder, configs, v, app, flow)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h.Router(),
	}

	// SIGHUP reloads static defaults
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				slog.Info("reloading config")
				holder.Reload()
			}
		}
	}()

	go func() {
		slog.Info("server listening", "port", cfg.Port, "backend", cfg.StoreBackend, "local_mode", localMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "err", err)
	}
	runner.Wait()
}
