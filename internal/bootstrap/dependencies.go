package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"risk-review-system/config"
	"risk-review-system/internal/fraud"
	"risk-review-system/internal/history"
	"risk-review-system/internal/kafka"
	"risk-review-system/internal/metrics"
	"risk-review-system/internal/narrative"
	"risk-review-system/internal/policy"
	"risk-review-system/internal/redis"
	"risk-review-system/internal/services"
	"risk-review-system/internal/storage/sqlite"
	"risk-review-system/internal/workflow"
)

// Dependencies общие зависимости сервиса проверки и воркера скоринга
type Dependencies struct {
	Storage       *sqlite.SQLiteStorage
	RedisClient   *redis.Client  // nil, если Redis недоступен
	KafkaProducer kafka.Producer // nil, если Kafka недоступна
	Metrics       *metrics.Collector
	Policies      *policy.Store
	Workflow      *workflow.Manager
	Evaluator     *services.EvaluationService
	Users         *services.UserDirectory
}

var (
	_ services.ReviewWorkflow = (*workflow.Manager)(nil)
	_ services.PolicyAdmin    = (*policy.Store)(nil)
)

// seedTimeout ограничение на заполнение справочника при старте
const seedTimeout = 10 * time.Second

// InitializeDependencies открывает хранилище и подключения, собирает движки и сервисы.
// Redis и Kafka необязательны: без них отключаются кэш, счетчики и публикация событий.
func InitializeDependencies(cfg *config.Config, serviceName string, log *zap.Logger) (*Dependencies, error) {
	store, err := sqlite.NewConnection(cfg, log.Named("sqlite"))
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{Storage: store, Metrics: metrics.NewCollector()}

	log.Info("Connecting to Redis...")
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Warn("Redis not available, assessment cache disabled", zap.Error(err))
	} else {
		deps.RedisClient = redisClient
		log.Info("Redis connection established")
	}

	log.Info("Connecting to Kafka...")
	producer, err := kafka.NewProducer(cfg, log.Named("kafka"))
	if err != nil {
		log.Warn("Kafka producer not available, review events disabled", zap.Error(err))
	} else {
		deps.KafkaProducer = producer
	}

	if err := deps.assemble(cfg, serviceName, log); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// assemble собирает движки и сервисы поверх открытых подключений и заполняет справочник пользователей
func (d *Dependencies) assemble(cfg *config.Config, serviceName string, log *zap.Logger) error {
	rules := fraud.DefaultRuleConfig()
	rules.ApprovalThreshold = decimal.NewFromFloat(cfg.Scoring.ApprovalThreshold)
	engine := fraud.NewEngine(
		fraud.WithRuleConfig(rules),
		fraud.WithScorer(fraud.NewHeuristicScorer(cfg.Scoring.LargeAmount)),
		fraud.WithLogger(log.Named("fraud")),
	)

	var countries policy.CountrySource
	if d.RedisClient != nil {
		countries = d.RedisClient
	}
	d.Policies = policy.NewStore(d.Storage, countries, log.Named("policy"))

	managerOpts := []workflow.Option{
		workflow.WithRecorder(d.Metrics),
		workflow.WithLogger(log.Named("workflow")),
		workflow.WithDefaultCountry(cfg.Scoring.DefaultCountry),
	}
	if d.KafkaProducer != nil {
		managerOpts = append(managerOpts, workflow.WithPublisher(d.KafkaProducer))
	}
	d.Workflow = workflow.NewManager(d.Storage, d.Storage, d.Policies, managerOpts...)

	evalOpts := []services.Option{
		services.WithQueue(d.Workflow),
		services.WithLedgerMirror(d.Storage),
		services.WithRecorder(d.Metrics),
		services.WithLogger(log.Named("evaluation")),
		services.WithServiceName(serviceName),
		services.WithDefaultCountry(cfg.Scoring.DefaultCountry),
		services.WithWorkers(cfg.Scoring.Workers),
		services.WithUnresolvedOrganization(cfg.Scoring.UnresolvedOrgID),
	}
	if d.RedisClient != nil {
		evalOpts = append(evalOpts, services.WithCache(d.RedisClient))
	}
	if d.KafkaProducer != nil {
		evalOpts = append(evalOpts, services.WithPublisher(d.KafkaProducer))
	}
	if cfg.Narrative.Enabled {
		evalOpts = append(evalOpts, services.WithNarrative(narrative.NewClient(cfg.Narrative, log.Named("narrative"))))
	}
	d.Evaluator = services.NewEvaluationService(
		engine,
		history.NewBuilder(d.Storage, rules, log.Named("history")),
		policy.NewEngine(log.Named("policy")),
		d.Policies,
		d.Storage,
		evalOpts...,
	)

	d.Users = services.NewUserDirectory(d.Storage, log.Named("directory"))
	return d.seedUsers(cfg, log)
}

// seedUsers добавляет в справочник пользователей из конфигурации, если их еще нет
func (d *Dependencies) seedUsers(cfg *config.Config, log *zap.Logger) error {
	seed, err := services.ParseSeedUsers(cfg.Directory.SeedUsers)
	if err != nil {
		return fmt.Errorf("invalid directory seed: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	created, err := d.Users.Seed(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to seed user directory: %w", err)
	}
	if created > 0 {
		log.Info("user directory seeded", zap.Int("created", created))
	}
	return nil
}

// MonitoredOrganizations организации для проверки SLA и пересборки статистики,
// включая очередь операций с неизвестным автором
func MonitoredOrganizations(cfg *config.Config) []string {
	orgs := append([]string(nil), cfg.Scoring.SLAOrganizationIDs...)
	if id := cfg.Scoring.UnresolvedOrgID; id != "" && !slices.Contains(orgs, id) {
		orgs = append(orgs, id)
	}
	return orgs
}

// Close закрывает все соединения
func (d *Dependencies) Close() error {
	var errs []error
	if d.KafkaProducer != nil {
		errs = append(errs, d.KafkaProducer.Close())
	}
	if d.RedisClient != nil {
		errs = append(errs, d.RedisClient.Close())
	}
	if d.Storage != nil {
		errs = append(errs, d.Storage.Close())
	}
	return errors.Join(errs...)
}
