package config

import (
	"github.com/staysearch/unit-index/internal/cache"
	"github.com/staysearch/unit-index/internal/consumer"
	"github.com/staysearch/unit-index/internal/indexer"
	"github.com/staysearch/unit-index/internal/relax"
	"github.com/staysearch/unit-index/internal/search"
	"github.com/staysearch/unit-index/internal/store"
	pkgconfig "github.com/staysearch/unit-index/pkg/config"
	"github.com/staysearch/unit-index/pkg/database"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Redis    store.Config
	Database database.Config
	Cache    cache.Config
	Indexer  indexer.Config
	Search   search.Config
	Relax    relax.Options
	Kafka    consumer.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 32)
	v.SetDefault("redis.use_server_scripts", true)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "staysearch")
	v.SetDefault("database.name", "staysearch")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 1)
	v.SetDefault("cache.prefix", "search")
	v.SetDefault("cache.ttl", "30s")

	v.SetDefault("indexer.build_concurrency", 16)
	v.SetDefault("indexer.build_gate_timeout", "5s")
	v.SetDefault("indexer.cascade_concurrency", 8)
	v.SetDefault("indexer.rebuild_batch_size", 200)
	v.SetDefault("indexer.rebuild_pause", "50ms")

	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("search.cache_ttl", "30s")

	v.SetDefault("relax.min_results", 5)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "catalog-changes")
	v.SetDefault("kafka.group_id", "unit-index")

	// Bind environment variables
	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("cache.address", "CACHE_REDIS_ADDRESS")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
