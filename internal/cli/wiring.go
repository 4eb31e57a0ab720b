package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"histosaga-service/internal/app"
	"histosaga-service/internal/config"
	"histosaga-service/internal/connectivity"
	"histosaga-service/internal/domain"
	"histosaga-service/internal/infra/memory"
	"histosaga-service/internal/infra/mongo"
	"histosaga-service/internal/infra/postgres"
	rediscache "histosaga-service/internal/infra/redis"
	"histosaga-service/internal/offline"
	"histosaga-service/internal/question"
)

// remoteStore is the remote document store as seen by the services.
type remoteStore interface {
	app.ActivityLoader
	app.ProgressStore
	app.UserStore
	app.ResetCodeStore
	Ping(ctx context.Context) error
}

// deps holds everything built from the config. close releases connections.
type deps struct {
	remote     remoteStore
	monitor    *connectivity.Monitor
	sessions   app.SessionRepository
	queue      *offline.Queue
	activities *app.ActivityRepository
	service    *app.ActivityService
	accounts   *app.AccountService
	profiles   *app.ProfileService
	reconciler *app.Reconciler
	close      func()
}

func buildDeps(ctx context.Context, cfg config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{}
	var closers []func()
	d.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  config.TTLDuration(cfg.Mongo.Timeout, 10*time.Second),
		})
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		store := mongo.NewStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			d.close()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		d.remote = store
	} else {
		log.Warn("mongo not configured, using in-memory remote store with sample activities")
		d.remote = memory.NewRemoteStore(sampleActivities()...)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var loader app.ActivityLoader = d.remote
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, err
		}
		closers = append(closers, pool.Close)
		loader = postgres.NewActivityLoader(pool)
	}

	activityTTL := config.TTLDuration(cfg.Activity.TTL, 10*time.Minute)
	var local offline.Store
	if redisClient != nil {
		loader = rediscache.NewActivityCache(redisClient, loader, activityTTL)
		local = rediscache.NewLocalStore(redisClient, cfg.Redis.Prefix)
		d.sessions = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		loader = memory.NewActivityCache(loader, activityTTL)
		local = memory.NewLocalStore()
		d.sessions = memory.NewSessionStore()
	}

	d.queue = offline.NewQueue(local)
	d.activities = app.NewActivityRepository(loader, offline.NewActivityCache(local), log)
	writer := app.NewProgressWriter(d.remote)
	d.service = app.NewActivityService(d.sessions, d.remote, d.activities, app.NewSubmitter(writer, d.queue, log), log)
	d.reconciler = app.NewReconciler(writer, d.queue, log)
	d.accounts = app.NewAccountService(d.remote, d.remote, app.LogMailer{Log: log}, app.AccountPolicy{
		ResetCodeTTL:    config.TTLDuration(cfg.Account.ResetCodeTTL, 10*time.Minute),
		MaxCodeAttempts: cfg.Account.MaxCodeAttempts,
	}, log)
	d.profiles = app.NewProfileService(d.remote, d.remote, d.activities)
	d.monitor = connectivity.NewMonitor(
		d.remote.Ping,
		config.TTLDuration(cfg.Connectivity.Interval, 15*time.Second),
		config.TTLDuration(cfg.Connectivity.Timeout, 5*time.Second),
		log,
	)
	return d, nil
}

// sampleActivities seeds the in-memory store and the seed command.
func sampleActivities() []domain.Activity {
	return []domain.Activity{
		{
			ID:       "independencia-1",
			Subject:  "historia",
			Title:    "Independência do Brasil",
			Position: 1,
			Questions: []question.Question{
				{
					Explanation: "Dom Pedro I proclamou a independência em 7 de setembro de 1822.",
					Body: &question.MultipleChoice{
						Prompt:  "Quem proclamou a independência do Brasil?",
						Options: []string{"Dom Pedro I", "Dom Pedro II", "Tiradentes", "Deodoro da Fonseca"},
						Correct: "Dom Pedro I",
					},
				},
				{
					Explanation: "O grito do Ipiranga ocorreu em São Paulo.",
					Body: &question.TrueFalse{
						Statement: "A independência foi proclamada às margens do riacho Ipiranga.",
						Correct:   true,
					},
				},
				{
					Body: &question.ShortAnswer{
						Prompt:   "Em que ano o Brasil se tornou independente?",
						Expected: "1822",
					},
				},
			},
		},
		{
			ID:       "republica-1",
			Subject:  "historia",
			Title:    "Proclamação da República",
			Position: 2,
			Questions: []question.Question{
				{
					Explanation: "A república foi proclamada em 15 de novembro de 1889.",
					Body: &question.Timeline{
						Instruction: "Ordene os acontecimentos",
						Periods: []question.Item{
							{ID: "e1", Text: "Independência (1822)"},
							{ID: "e2", Text: "Abolição da escravatura (1888)"},
							{ID: "e3", Text: "Proclamação da República (1889)"},
						},
						CorrectOrder: []string{"e1", "e2", "e3"},
					},
				},
			},
		},
	}
}
