// Package config loads the application configuration from file and
// environment into a single immutable object passed explicitly into
// each component. There are no process-wide mutable singletons beyond
// the zap global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig             `yaml:"store" mapstructure:"store"`
	Vocab   VocabConfig             `yaml:"vocab" mapstructure:"vocab"`
	Sources map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Fetch   FetchConfig             `yaml:"fetch" mapstructure:"fetch"`
	Dedupe  DedupeConfig            `yaml:"dedupe" mapstructure:"dedupe"`
	Log     LogConfig               `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// VocabConfig points at the controlled vocabulary files. They are
// loaded once per run and immutable for its duration.
type VocabConfig struct {
	SectorsPath string `yaml:"sectors_path" mapstructure:"sectors_path"`
	SkillsPath  string `yaml:"skills_path" mapstructure:"skills_path"`
	CitiesPath  string `yaml:"cities_path" mapstructure:"cities_path"`
}

// SourceConfig configures one external posting source. Fields maps
// canonical field names (title, company, city, date, salary,
// description, url, id) to the source's raw field names; raw records
// are interpreted only through this mapping, never by field sniffing.
type SourceConfig struct {
	Kind        string            `yaml:"kind" mapstructure:"kind"` // http_json, csv, ftp_csv, xlsx
	Endpoint    string            `yaml:"endpoint" mapstructure:"endpoint"`
	Authority   int               `yaml:"authority" mapstructure:"authority"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Fields      map[string]string `yaml:"fields" mapstructure:"fields"`
	DateLayouts []string          `yaml:"date_layouts" mapstructure:"date_layouts"`
	SalaryUnit  string            `yaml:"salary_unit" mapstructure:"salary_unit"` // annual, monthly, hourly
	SheetName   string            `yaml:"sheet_name" mapstructure:"sheet_name"`
	Delimiter   string            `yaml:"delimiter" mapstructure:"delimiter"`
	Params      map[string]string `yaml:"params" mapstructure:"params"`
}

// Timeout returns the per-source fetch timeout.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSecs) * time.Second
}

// FetchConfig configures the shared HTTP transport.
type FetchConfig struct {
	UserAgent      string             `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries     int                `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost    map[string]float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	DefaultRate    float64            `yaml:"default_rate" mapstructure:"default_rate"`
	FTPTimeoutSecs int                `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// FTPTimeout returns the FTP dial timeout.
func (f FetchConfig) FTPTimeout() time.Duration {
	if f.FTPTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.FTPTimeoutSecs) * time.Second
}

// DedupeConfig holds the tunable deduplication policy. The similarity
// threshold and field weights are configuration, not constants.
type DedupeConfig struct {
	Threshold            float64 `yaml:"threshold" mapstructure:"threshold"`
	TitleWeight          float64 `yaml:"title_weight" mapstructure:"title_weight"`
	CompanyWeight        float64 `yaml:"company_weight" mapstructure:"company_weight"`
	CityWeight           float64 `yaml:"city_weight" mapstructure:"city_weight"`
	SkillWeight          float64 `yaml:"skill_weight" mapstructure:"skill_weight"`
	CompanyNameThreshold float64 `yaml:"company_name_threshold" mapstructure:"company_name_threshold"`
	BlockWorkers         int     `yaml:"block_workers" mapstructure:"block_workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "jobpulse.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("vocab.sectors_path", "vocab/sectors.yaml")
	v.SetDefault("vocab.skills_path", "vocab/skills.yaml")
	v.SetDefault("vocab.cities_path", "vocab/cities.yaml")
	v.SetDefault("fetch.user_agent", "jobpulse/1.0")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.default_rate", 10)
	v.SetDefault("fetch.ftp_timeout_secs", 30)
	v.SetDefault("dedupe.threshold", 0.75)
	v.SetDefault("dedupe.title_weight", 0.5)
	v.SetDefault("dedupe.company_weight", 0.2)
	v.SetDefault("dedupe.city_weight", 0.1)
	v.SetDefault("dedupe.skill_weight", 0.2)
	v.SetDefault("dedupe.company_name_threshold", 0.9)
	v.SetDefault("dedupe.block_workers", 4)

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

	return &cfg, nil
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
