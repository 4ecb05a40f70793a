package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig              `yaml:"store" mapstructure:"store"`
	Log          LogConfig                `yaml:"log" mapstructure:"log"`
	Server       ServerConfig             `yaml:"server" mapstructure:"server"`
	Matcher      MatcherConfig            `yaml:"matcher" mapstructure:"matcher"`
	Classifier   ClassifierConfig         `yaml:"classifier" mapstructure:"classifier"`
	Planning     PlanningConfig           `yaml:"planning" mapstructure:"planning"`
	Property     PropertyConfig           `yaml:"property" mapstructure:"property"`
	Review       ReviewConfig             `yaml:"review" mapstructure:"review"`
	Queue        QueueConfig              `yaml:"queue" mapstructure:"queue"`
	Metrics      MetricsConfig            `yaml:"metrics" mapstructure:"metrics"`
	Monitoring   MonitoringConfig         `yaml:"monitoring" mapstructure:"monitoring"`
	Segments     map[string]model.Segment `yaml:"segments" mapstructure:"segments"`
	SegmentsFile string                   `yaml:"segments_file" mapstructure:"segments_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MatcherConfig configures provisional to authoritative matching.
type MatcherConfig struct {
	WindowDays int `yaml:"window_days" mapstructure:"window_days"`
}

// ClassifierConfig configures the auto-exclusion rules.
type ClassifierConfig struct {
	AllowedZonings  []string `yaml:"allowed_zonings" mapstructure:"allowed_zonings"`
	YearBuiltCutoff int      `yaml:"year_built_cutoff" mapstructure:"year_built_cutoff"`
	ExcludeKeywords []string `yaml:"exclude_keywords" mapstructure:"exclude_keywords"`
	BatchLimit      int      `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// PlanningConfig configures the planning portal zoning lookup.
type PlanningConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	State       string  `yaml:"state" mapstructure:"state"`

	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PropertyConfig configures the property API year built lookup.
type PropertyConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`

	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ReviewConfig configures review digests.
type ReviewConfig struct {
	ListingBaseURL string `yaml:"listing_base_url" mapstructure:"listing_base_url"`
	ListingState   string `yaml:"listing_state" mapstructure:"listing_state"`
	DigestLimit    int    `yaml:"digest_limit" mapstructure:"digest_limit"`
}

// QueueConfig configures the Redis verdict stream.
type QueueConfig struct {
	RedisURL  string `yaml:"redis_url" mapstructure:"redis_url"`
	Stream    string `yaml:"stream" mapstructure:"stream"`
	Group     string `yaml:"group" mapstructure:"group"`
	Consumer  string `yaml:"consumer" mapstructure:"consumer"`
	BlockSecs int    `yaml:"block_secs" mapstructure:"block_secs"`
}

// MetricsConfig holds the minimum sample sizes for each aggregation period.
type MetricsConfig struct {
	MinSampleMonthly   int `yaml:"min_sample_monthly" mapstructure:"min_sample_monthly"`
	MinSampleQuarterly int `yaml:"min_sample_quarterly" mapstructure:"min_sample_quarterly"`
	MinSample6Month    int `yaml:"min_sample_6month" mapstructure:"min_sample_6month"`

	// Annual growth rates used to time-adjust older sales.
	GrowthBase         float64 `yaml:"growth_base" mapstructure:"growth_base"`
	GrowthConservative float64 `yaml:"growth_conservative" mapstructure:"growth_conservative"`
	GrowthOptimistic   float64 `yaml:"growth_optimistic" mapstructure:"growth_optimistic"`
}

// MonitoringConfig configures backlog alerting.
type MonitoringConfig struct {
	WebhookURL             string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	PendingReviewThreshold int    `yaml:"pending_review_threshold" mapstructure:"pending_review_threshold"`
	UnconfirmedThreshold   int    `yaml:"unconfirmed_threshold" mapstructure:"unconfirmed_threshold"`
	UnclassifiedThreshold  int    `yaml:"unclassified_threshold" mapstructure:"unclassified_threshold"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sales.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("matcher.window_days", 14)
	v.SetDefault("classifier.allowed_zonings", []string{"R2", "R3"})
	v.SetDefault("classifier.year_built_cutoff", 2010)
	v.SetDefault("classifier.exclude_keywords", []string{"duplex", "dual occ", "torrens", "brand new", "just completed"})
	v.SetDefault("classifier.batch_limit", 50)
	v.SetDefault("planning.enabled", false)
	v.SetDefault("planning.base_url", "https://api.apps1.nsw.gov.au/planning/viewersf/V1/ePlanningApi")
	v.SetDefault("planning.rate_per_sec", 1.0)
	v.SetDefault("planning.concurrency", 2)
	v.SetDefault("planning.state", "NSW")
	v.SetDefault("planning.max_attempts", 3)
	v.SetDefault("planning.breaker_threshold", 5)
	v.SetDefault("planning.breaker_reset_secs", 60)
	v.SetDefault("property.enabled", false)
	v.SetDefault("property.base_url", "https://api.domain.com.au/v1")
	v.SetDefault("property.api_key", "")
	v.SetDefault("property.rate_per_sec", 1.0)
	v.SetDefault("property.concurrency", 1)
	v.SetDefault("property.max_attempts", 3)
	v.SetDefault("property.breaker_threshold", 5)
	v.SetDefault("property.breaker_reset_secs", 60)
	v.SetDefault("review.listing_base_url", "https://www.domain.com.au")
	v.SetDefault("review.listing_state", "NSW")
	v.SetDefault("review.digest_limit", 50)
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.stream", "verdicts")
	v.SetDefault("queue.group", "ledger")
	v.SetDefault("queue.consumer", "")
	v.SetDefault("queue.block_secs", 5)
	v.SetDefault("metrics.min_sample_monthly", 3)
	v.SetDefault("metrics.min_sample_quarterly", 5)
	v.SetDefault("metrics.min_sample_6month", 8)
	v.SetDefault("metrics.growth_base", 0.07)
	v.SetDefault("metrics.growth_conservative", 0.05)
	v.SetDefault("metrics.growth_optimistic", 0.10)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.pending_review_threshold", 50)
	v.SetDefault("monitoring.unconfirmed_threshold", 200)
	v.SetDefault("monitoring.unclassified_threshold", 100)
	v.SetDefault("segments_file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.SegmentsFile != "" {
		segs, err := LoadSegmentsFile(cfg.SegmentsFile)
		if err != nil {
			return nil, err
		}
		cfg.Segments = segs
	}
	if len(cfg.Segments) == 0 {
		cfg.Segments = DefaultSegments()
	}
	for code, seg := range cfg.Segments {
		seg.Code = code
		cfg.Segments[code] = seg
	}

	return &cfg, nil
}

// segmentsFile is the on-disk layout of segments_file.
type segmentsFile struct {
	Segments map[string]model.Segment `yaml:"segments"`
}

// LoadSegmentsFile reads segment definitions from a YAML file. Map keys
// become segment codes.
func LoadSegmentsFile(path string) (map[string]model.Segment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read segments file %s", path)
	}
	var f segmentsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse segments file %s", path)
	}
	if len(f.Segments) == 0 {
		return nil, eris.Errorf("config: segments file %s defines no segments", path)
	}
	for code, seg := range f.Segments {
		seg.Code = code
		f.Segments[code] = seg
	}
	return f.Segments, nil
}

// DefaultSegments returns the built-in tracked segments.
func DefaultSegments() map[string]model.Segment {
	areaMin, areaMax := 450.0, 800.0
	return map[string]model.Segment{
		"revesby_houses": {
			Code:          "revesby_houses",
			Name:          "Revesby Houses",
			Suburbs:       []string{"revesby", "revesby heights"},
			PropertyType:  model.PropertyHouse,
			AreaMin:       &areaMin,
			AreaMax:       &areaMax,
			RequireReview: true,
		},
		"wollstonecraft_units": {
			Code:         "wollstonecraft_units",
			Name:         "Wollstonecraft Units",
			Suburbs:      []string{"wollstonecraft"},
			PropertyType: model.PropertyUnit,
		},
		"lane_cove_houses": {
			Code:         "lane_cove_houses",
			Name:         "Lane Cove Houses",
			Suburbs:      []string{"lane cove", "lane cove north", "lane cove west"},
			PropertyType: model.PropertyHouse,
		},
		"lane_cove_units": {
			Code:         "lane_cove_units",
			Name:         "Lane Cove Units",
			Suburbs:      []string{"lane cove", "lane cove north", "lane cove west"},
			PropertyType: model.PropertyUnit,
		},
		"chatswood_houses": {
			Code:         "chatswood_houses",
			Name:         "Chatswood Houses",
			Suburbs:      []string{"chatswood", "chatswood west"},
			PropertyType: model.PropertyHouse,
		},
		"chatswood_units": {
			Code:         "chatswood_units",
			Name:         "Chatswood Units",
			Suburbs:      []string{"chatswood", "chatswood west"},
			PropertyType: model.PropertyUnit,
		},
	}
}

// Segment returns the named segment.
func (c *Config) Segment(code string) (model.Segment, error) {
	seg, ok := c.Segments[code]
	if !ok {
		return model.Segment{}, eris.Errorf("config: unknown segment %q", code)
	}
	return seg, nil
}

// SegmentList returns all segments ordered by code.
func (c *Config) SegmentList() []model.Segment {
	out := make([]model.Segment, 0, len(c.Segments))
	for _, seg := range c.Segments {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be 1-65535 (got %d)", c.Server.Port))
		}
	case "queue":
		errs = append(errs, c.validateStore()...)
		if c.Queue.RedisURL == "" {
			errs = append(errs, "queue.redis_url is required")
		}
	case "classify":
		errs = append(errs, c.validateStore()...)
		if c.Classifier.YearBuiltCutoff <= 0 {
			errs = append(errs, "classifier.year_built_cutoff must be positive")
		}
		if c.Planning.Enabled && c.Planning.BaseURL == "" {
			errs = append(errs, "planning.base_url is required when planning.enabled")
		}
		if c.Property.Enabled && c.Property.APIKey == "" {
			errs = append(errs, "property.api_key is required when property.enabled")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	for code, seg := range c.Segments {
		if len(seg.Suburbs) == 0 {
			errs = append(errs, fmt.Sprintf("segments.%s.suburbs is required", code))
		}
		if !seg.PropertyType.Valid() {
			errs = append(errs, fmt.Sprintf("segments.%s.property_type %q is invalid", code, seg.PropertyType))
		}
		if seg.AreaMin != nil && seg.AreaMax != nil && *seg.AreaMin > *seg.AreaMax {
			errs = append(errs, fmt.Sprintf("segments.%s.area_min exceeds area_max", code))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver)}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
