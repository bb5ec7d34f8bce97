// Package bootstrap wires configuration into running API and worker processes.
package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"complaint_triage/adapter/out/mail"
	"complaint_triage/adapter/out/messaging"
	"complaint_triage/adapter/out/mongodb"
	"complaint_triage/adapter/out/persistence"
	"complaint_triage/adapter/out/webhook"
	"complaint_triage/config"
	"complaint_triage/core/agent/llm"
	"complaint_triage/core/port/out"
	"complaint_triage/core/service/classification"
	"complaint_triage/core/service/notification"
	"complaint_triage/core/service/routing"
	"complaint_triage/core/service/triage"
	"complaint_triage/infra/database"
	"complaint_triage/pkg/cache"
	"complaint_triage/pkg/httputil"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/ratelimit"
	"complaint_triage/pkg/snowflake"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	ComplaintRepo *persistence.ComplaintAdapter
	AuditRepo     *mongodb.AuditAdapter

	// Messaging
	IntakeProducer *messaging.IntakeProducer
	Events         *messaging.KafkaPublisher

	// Delivery
	MailSender    *mail.SMTPSender
	WebhookPoster *webhook.Poster

	// Services
	Metrics       *metrics.Registry
	LLMClient     *llm.Client
	Classifier    *classification.Classifier
	Router        *routing.Router
	Notifier      *notification.Notifier
	TriageService *triage.Service

	Keys *snowflake.Node
}

// NewDependencies connects every backing service. Postgres is required;
// Redis, MongoDB, Kafka, SMTP, Slack and the LLM degrade to reduced
// functionality when unconfigured or unreachable.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Metrics: metrics.NewRegistry(0)}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database (pgxpool)
	pgCfg := database.DefaultPostgresConfig()
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, pgCfg)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx over the same pool for the repository)
	sqlDB := database.NewSQLXFromPool(db, pgCfg)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	deps.ComplaintRepo = persistence.NewComplaintAdapter(sqlDB)
	if err := deps.ComplaintRepo.EnsureSchema(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info("postgres ready (pool: max=%d)", pgCfg.MaxConns)

	// Redis
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			deps.IntakeProducer = messaging.NewIntakeProducer(redisClient, cfg.IntakeStreamMaxLen)
		}
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBURL, 10*time.Second)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})
			deps.AuditRepo = mongodb.NewAuditAdapter(mongoClient.Database(cfg.MongoDBName), cfg.AuditRetention)
			if err := deps.AuditRepo.EnsureIndexes(ctx); err != nil {
				logger.Warn("audit index setup failed: %v", err)
			}
		}
	}

	// Kafka
	if len(cfg.KafkaBrokers) > 0 {
		deps.Events = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		cleanups = append(cleanups, func() { deps.Events.Close() })
		logger.Info("triage events published to %s", cfg.KafkaTopic)
	}

	keys, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Keys = keys

	// LLM
	var llmClient out.LLMClient
	if cfg.OpenAIAPIKey != "" {
		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		}, deps.Metrics, logger.Default())
		llmClient = deps.LLMClient
	} else {
		logger.Warn("OPENAI_API_KEY not set, complaints are classified by keyword rules only")
	}

	deps.Classifier = classification.NewClassifier(llmClient, classification.Config{
		Timeout: cfg.LLMTimeout,
	}, deps.Metrics, logger.Default())
	deps.Router = routing.NewRouter(cfg.Teams, logger.Default())

	// Delivery
	var mailSender out.MailSender
	smtpCfg := mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	if smtpCfg.Enabled() {
		deps.MailSender = mail.NewSMTPSender(smtpCfg)
		mailSender = deps.MailSender
	} else {
		logger.Warn("SMTP not configured, mail notifications will be recorded as failed")
	}

	deps.WebhookPoster = webhook.NewPoster(httputil.NewClient(httputil.WebhookClientConfig()), logger.Default())
	deps.Notifier = notification.NewNotifier(mailSender, deps.WebhookPoster, cfg.Teams, notification.Config{
		Timeout:         cfg.NotifyTimeout,
		SlackWebhookURL: cfg.SlackWebhookURL,
	}, logger.Default())

	deps.TriageService = triage.NewService(deps.serviceDeps(), triage.Config{
		AnalyticsCacheTTL: cfg.AnalyticsCacheTTL,
	}, logger.Default())

	return deps, cleanup, nil
}

// serviceDeps picks the optional collaborators that were actually
// connected. Interfaces holding typed nil pointers are avoided.
func (d *Dependencies) serviceDeps() triage.Deps {
	sd := triage.Deps{
		Repo:       d.ComplaintRepo,
		Classifier: d.Classifier,
		Router:     d.Router,
		Notifier:   d.Notifier,
		Metrics:    d.Metrics,
		Locker:     ratelimit.NewKeyLock(d.Redis, "triage:lock:"),
	}
	if d.Redis != nil {
		sd.Cache = cache.NewRedisCache(d.Redis, "triage:")
	} else {
		sd.Cache = cache.NewMemoryCache()
	}
	if d.AuditRepo != nil {
		sd.Archive = d.AuditRepo
	}
	if d.Events != nil {
		sd.Events = d.Events
	}
	return sd
}
