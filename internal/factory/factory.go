package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/mattysabby19/taskly-api/internal/bucketing"
	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/encryption"
	"github.com/mattysabby19/taskly-api/internal/handler"
	"github.com/mattysabby19/taskly-api/internal/hashing"
	"github.com/mattysabby19/taskly-api/internal/identity"
	"github.com/mattysabby19/taskly-api/internal/repository/clickhouse"
	"github.com/mattysabby19/taskly-api/internal/repository/elasticsearch"
	redisrepo "github.com/mattysabby19/taskly-api/internal/repository/redis"
	"github.com/mattysabby19/taskly-api/internal/repository/scylla"
	"github.com/mattysabby19/taskly-api/internal/security"
	"github.com/mattysabby19/taskly-api/internal/service"
	"github.com/mattysabby19/taskly-api/internal/tls"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// Factory wires every dependency once at startup and owns their
// shutdown order. Kafka and Elasticsearch are optional: the monitor
// degrades to store-only when they are absent.
type Factory struct {
	cfg        *config.Config
	tlsManager *tls.Manager

	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	clickhouseClient *client.ClickHouseClient
	esClient         *client.ESClient
	kafkaPublisher   *client.KafkaPublisher

	monitor *security.Monitor
	router  http.Handler

	closeOnce sync.Once
}

// NewFactory loads configuration, connects every client and assembles the
// full service graph.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{cfg: cfg}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(cfg.Server)
	}

	if err := f.initClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	f.assemble()

	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled))
	return f, nil
}

func (f *Factory) initClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	if c, err := client.NewRedisClient(f.cfg, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = c
	}

	if c, err := scylla.NewScyllaClient(f.cfg, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = c
	}

	if c, err := client.NewClickHouseClient(f.cfg, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = c
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		}
	}

	if c, err := client.NewElasticsearchClient(f.cfg, util.Get()); err != nil {
		util.Warn("Elasticsearch unavailable, incident search disabled", util.ErrorField(err))
	} else {
		f.esClient = c
	}

	f.kafkaPublisher = client.NewKafkaPublisher(f.cfg, util.Get())

	if len(initErrors) > 0 {
		if f.cfg.IsProduction() {
			return fmt.Errorf("critical client initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Client initialization warning", util.ErrorField(err))
		}
	}
	return nil
}

// assemble builds repositories, the security pipeline, services and the
// HTTP surface on top of the connected clients.
func (f *Factory) assemble() {
	logger := util.Get()
	cfg := f.cfg

	members := scylla.NewMemberRepository(f.scyllaClient)
	sessions := scylla.NewSessionRepository(f.scyllaClient)
	groups := scylla.NewGroupRepository(f.scyllaClient)
	tasks := scylla.NewTaskRepository(f.scyllaClient)
	consents := scylla.NewConsentRepository(f.scyllaClient)
	incidents := scylla.NewIncidentRepository(f.scyllaClient)
	audit := clickhouse.NewAuditRepository(f.clickhouseClient)

	rateLimits := redisrepo.NewRateLimitCache(f.redisClient)
	securityCache := redisrepo.NewSecurityCache(f.redisClient)
	sessionCache := redisrepo.NewSessionCache(f.redisClient)

	var indexer *elasticsearch.IncidentIndexer
	var monitorIndexer security.IncidentIndexer
	if f.esClient != nil {
		indexer = elasticsearch.NewIncidentIndexer(f.esClient)
		monitorIndexer = indexer
	}
	var publisher security.EventPublisher
	if f.kafkaPublisher != nil {
		publisher = f.kafkaPublisher
	}

	buckets := bucketing.NewManager(cfg.Bucketing)
	responder := security.NewResponder(securityCache, sessions, cfg.Security, logger)
	f.monitor = security.NewMonitor(audit, incidents, monitorIndexer, publisher, responder, buckets, cfg.Security, logger)
	detector := security.NewThreatDetector(audit, sessions, cfg.Security, logger)
	baseline := security.NewBaselineAnalyzer(audit, cfg.Security, logger)

	hasher := hashing.NewHasher()
	verifier := identity.NewJWTVerifier(cfg.Auth.JWTSigningKey)
	encryptionManager := encryption.NewManager(cfg.KMS, f.kmsClient())

	authService := service.NewAuthService(members, sessions, sessionCache, securityCache, verifier, hasher, f.monitor, cfg.Auth, logger)
	memberService := service.NewMemberService(members, logger)
	groupService := service.NewGroupService(groups, f.monitor, logger)
	taskService := service.NewTaskService(tasks, groupService, f.monitor, logger)
	gdprService := service.NewGDPRService(members, sessions, groups, tasks, consents, audit, encryptionManager, f.monitor, logger)
	incidentService := service.NewIncidentService(incidents, indexer, detector, baseline, logger)

	mw := handler.NewMiddleware(authService, rateLimits, securityCache, f.monitor, cfg.Security, logger)
	f.router = handler.NewRouter(handler.RouterDeps{
		Middleware: mw,
		Auth:       handler.NewAuthHandler(authService, memberService),
		Groups:     handler.NewGroupHandler(groupService),
		Tasks:      handler.NewTaskHandler(taskService),
		GDPR:       handler.NewGDPRHandler(gdprService),
		Security:   handler.NewSecurityHandler(incidentService),
		Health:     f.healthHandler,
	})
}

// kmsClient builds the KMS client when envelope encryption is enabled.
// Failure to load AWS credentials disables encryption rather than
// blocking startup.
func (f *Factory) kmsClient() *kms.Client {
	if !f.cfg.KMS.Enabled {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(f.cfg.KMS.Region))
	if err != nil {
		util.Warn("Failed to load AWS config, export encryption disabled", util.ErrorField(err))
		return nil
	}
	return kms.NewFromConfig(awsCfg)
}

func (f *Factory) healthHandler(w http.ResponseWriter, r *http.Request) {
	errors := f.HealthCheck(r.Context())
	if len(errors) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HealthCheck pings the required backing stores.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	} else {
		healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
	}

	return healthErrors
}

func (f *Factory) Config() *config.Config {
	return f.cfg
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

func (f *Factory) Router() http.Handler {
	return f.router
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory")

		if f.kafkaPublisher != nil {
			if err := f.kafkaPublisher.Close(); err != nil {
				util.Error("Failed to close Kafka publisher", util.ErrorField(err))
			}
		}
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})
	return nil
}
