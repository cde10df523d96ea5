package main

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
	"github.com/redis/go-redis/v9"
)

// openStorage connects the configured backend. The returned func releases it.
func openStorage(ctx context.Context, cfg *config.Config, log logging.Logger) (storage.Storage, func(), error) {
	sc := cfg.Storage

	switch sc.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info(ctx, "connected to redis", "addr", sc.RedisAddr)
		return storage.NewRedisStorage(client, sc.RedisTTL), func() { _ = client.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, sc.MongoURI, sc.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		st := storage.NewMongoStorage(db)
		if err := st.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		log.Info(ctx, "connected to mongodb", "uri", sc.MongoURI, "db", sc.MongoDB)
		return st, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	case config.BackendSQLite, config.BackendPostgres:
		var (
			st  *storage.SQLStorage
			err error
		)
		if sc.Backend == config.BackendSQLite {
			st, err = storage.NewSQLiteStorage(sc.SQLitePath)
		} else {
			st, err = storage.NewPostgresStorage(&storage.Credentials{
				Host:     sc.Postgres.Host,
				Port:     sc.Postgres.Port,
				User:     sc.Postgres.User,
				Password: sc.Postgres.Password,
				DBName:   sc.Postgres.DBName,
			})
		}
		if err != nil {
			return nil, nil, err
		}
		if err := st.RunMigrations(); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		log.Info(ctx, "sql storage ready", "backend", sc.Backend)
		return st, func() { _ = st.Close() }, nil

	default:
		log.Warn(ctx, "using in-memory storage, state is lost on restart")
		return storage.NewMemoryStorage(), func() {}, nil
	}
}
