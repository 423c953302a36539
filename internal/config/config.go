package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full service and CLI configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	Debug          bool          `mapstructure:"debug"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// LLMConfig selects and bounds the generator.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	Project           string        `mapstructure:"project"`
	Region            string        `mapstructure:"region"`
	Script            string        `mapstructure:"script"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxTokens         int           `mapstructure:"max_tokens"`
}

// PipelineConfig bounds the per-file run.
type PipelineConfig struct {
	MaxRepairs          int `mapstructure:"max_repairs"`
	MaxTransportRetries int `mapstructure:"max_transport_retries"`
	MaxPromptTokens     int `mapstructure:"max_prompt_tokens"`
	MaxConcurrentFiles  int `mapstructure:"max_concurrent_files"`
}

// ParserConfig tunes document parsers.
type ParserConfig struct {
	PDFFallbackPdftotext bool `mapstructure:"pdf_fallback_pdftotext"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads examconv.yaml (optional) and EXAMCONV_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("examconv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EXAMCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.session_ttl", time.Hour)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.project", "")
	v.SetDefault("llm.region", "us-central1")
	v.SetDefault("llm.script", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.max_tokens", 16000)
	v.SetDefault("pipeline.max_repairs", 2)
	v.SetDefault("pipeline.max_transport_retries", 3)
	v.SetDefault("pipeline.max_prompt_tokens", 120000)
	v.SetDefault("pipeline.max_concurrent_files", 4)
	v.SetDefault("parser.pdf_fallback_pdftotext", true)
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// ValidateServe checks the keys the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.Server.APIKey == "" {
		return eris.New("config: server.api_key is required")
	}
	if c.Server.Port <= 0 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return c.ValidateLLM()
}

// ValidateLLM checks that the selected provider can be constructed.
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return eris.Errorf("config: llm.api_key is required for provider %s", c.LLM.Provider)
		}
	case "vertex":
		if c.LLM.Project == "" {
			return eris.New("config: llm.project is required for provider vertex")
		}
	case "scripted":
		if c.LLM.Script == "" {
			return eris.New("config: llm.script is required for provider scripted")
		}
	default:
		return eris.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	if c.Pipeline.MaxRepairs < 0 || c.Pipeline.MaxTransportRetries < 0 {
		return eris.New("config: retry budgets must not be negative")
	}
	return nil
}

// NewLogger builds a zap logger: JSON for production, console for local use.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
