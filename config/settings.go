package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/moviematch/model"
)

// EnvPrefix 是环境变量前缀，层级用双下划线分隔：
// MOVIEMATCH_EXPANSION__MIN_SOCIAL=10 -> expansion.min_social
const EnvPrefix = "MOVIEMATCH_"

// Settings 是进程级配置。
type Settings struct {
	Log         LogSettings         `koanf:"log"`
	Postgres    PostgresSettings    `koanf:"postgres"`
	SQLite      SQLiteSettings      `koanf:"sqlite"`
	Redis       RedisSettings       `koanf:"redis"`
	Feast       FeastSettings       `koanf:"feast"`
	Breaker     BreakerSettings     `koanf:"breaker"`
	Snapshot    SnapshotSettings    `koanf:"snapshot"`
	Expansion   ExpansionSettings   `koanf:"expansion"`
	Social      SocialSettings      `koanf:"social"`
	Rank        RankSettings        `koanf:"rank"`
	Personalize PersonalizeSettings `koanf:"personalize"`
	Retrain     RetrainSettings     `koanf:"retrain"`
	Pipeline    PipelineSettings    `koanf:"pipeline"`
	Metrics     MetricsSettings     `koanf:"metrics"`
}

type LogSettings struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"` // json / console
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// PostgresSettings 配置关系库数据源，DSN 为空表示不使用。
type PostgresSettings struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// SQLiteSettings 配置文件数据源，Postgres 未配置时使用。
type SQLiteSettings struct {
	Path string `koanf:"path"`
}

// RedisSettings 配置快照存储，Addr 为空时使用内存存储。
type RedisSettings struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// FeastSettings 配置在线评分聚合，Host 为空表示从关系库读取聚合。
type FeastSettings struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	Project         string `koanf:"project"`
	EntityKey       string `koanf:"entity_key"`
	MeanRatingFeat  string `koanf:"mean_rating_feature"`
	RatingCountFeat string `koanf:"rating_count_feature"`
	BatchSize       int    `koanf:"batch_size"`
}

// BreakerSettings 配置协作方熔断。
type BreakerSettings struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
	HalfOpenRequests    uint32        `koanf:"half_open_requests"`
}

type SnapshotSettings struct {
	Key            string `koanf:"key"`
	MinCatalogSize int    `koanf:"min_catalog_size"`
	CacheSize      int    `koanf:"cache_size"`
	Persist        bool   `koanf:"persist"`
	RestoreOnStart bool   `koanf:"restore_on_start"`
}

type ExpansionSettings struct {
	MinSocial   int `koanf:"min_social"`
	MaxSeeds    int `koanf:"max_seeds"`
	PerSeed     int `koanf:"per_seed"`
	Concurrency int `koanf:"concurrency"`
}

type SocialSettings struct {
	MinFriendRating float64 `koanf:"min_friend_rating"`
}

type RankSettings struct {
	TopK    int           `koanf:"top_k"`
	Weights model.Weights `koanf:"weights"`
}

type PersonalizeSettings struct {
	MaxSeeds int `koanf:"max_seeds"`
}

// RetrainSettings 配置周期重训，Interval 为 0 表示只在启动时训练。
type RetrainSettings struct {
	OnStartup bool          `koanf:"on_startup"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`
}

// PipelineSettings 配置请求链路。Path 指向 YAML/JSON 链路文件，为空时使用内置链路；
// FilterExpr 非空时在扩展与排序之间插入表达式过滤。
type PipelineSettings struct {
	Path       string `koanf:"path"`
	FilterExpr string `koanf:"filter_expr"`
}

type MetricsSettings struct {
	Addr string `koanf:"addr"`
}

// Default 返回默认配置。
func Default() *Settings {
	return &Settings{
		Log: LogSettings{Level: "info", Format: "json", Timestamp: true},
		Postgres: PostgresSettings{
			MaxConns: 10,
		},
		Feast: FeastSettings{
			Port:            6566,
			EntityKey:       "movie_id",
			MeanRatingFeat:  "movie_stats:avg_user_rating",
			RatingCountFeat: "movie_stats:user_rating_count",
			BatchSize:       500,
		},
		Breaker: BreakerSettings{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			HalfOpenRequests:    1,
		},
		Snapshot: SnapshotSettings{
			Key:            "moviematch:snapshot",
			MinCatalogSize: 1,
			CacheSize:      4096,
			Persist:        true,
			RestoreOnStart: true,
		},
		Expansion: ExpansionSettings{
			MinSocial:   15,
			MaxSeeds:    20,
			PerSeed:     2,
			Concurrency: 4,
		},
		Social: SocialSettings{MinFriendRating: 4.0},
		Rank: RankSettings{
			TopK:    10,
			Weights: model.DefaultWeights(),
		},
		Personalize: PersonalizeSettings{MaxSeeds: 5},
		Retrain: RetrainSettings{
			OnStartup: true,
			Interval:  24 * time.Hour,
			Timeout:   10 * time.Minute,
		},
	}
}

// Load 按“默认值 -> YAML 文件 -> 环境变量”的顺序加载配置。path 为空时跳过文件。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Settings{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey 把 MOVIEMATCH_RANK__TOP_K 转换为 rank.top_k。
func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// Validate 校验阈值类配置。
func (s *Settings) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("expansion.min_social", s.Expansion.MinSocial)
	positive("expansion.max_seeds", s.Expansion.MaxSeeds)
	positive("expansion.per_seed", s.Expansion.PerSeed)
	positive("expansion.concurrency", s.Expansion.Concurrency)
	positive("rank.top_k", s.Rank.TopK)
	positive("personalize.max_seeds", s.Personalize.MaxSeeds)
	positive("snapshot.min_catalog_size", s.Snapshot.MinCatalogSize)
	if s.Snapshot.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("snapshot.cache_size must not be negative"))
	}
	if s.Retrain.Interval < 0 {
		errs = append(errs, fmt.Errorf("retrain.interval must not be negative"))
	}
	if s.Social.MinFriendRating < 0 {
		errs = append(errs, fmt.Errorf("social.min_friend_rating must not be negative"))
	}
	if s.Feast.Host != "" && s.Feast.Port <= 0 {
		errs = append(errs, fmt.Errorf("feast.port must be positive when feast.host is set"))
	}
	return errors.Join(errs...)
}
