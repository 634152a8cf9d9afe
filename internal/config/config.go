package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/amm/internal/chunking"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Embedding and generation providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	// DesignPath points at the YAML design served by this instance.
	DesignPath string `envconfig:"DESIGN_PATH" default:"design.yaml"`
	DataDir    string `envconfig:"DATA_DIR" default:"data"`

	// DatabaseURL switches storage to Postgres with pgvector. Without it
	// knowledge stays in memory and interactions go to SQLite.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	APIToken string `envconfig:"API_TOKEN" masq:"secret"`

	Provider            string `envconfig:"PROVIDER" default:"gemini"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY" masq:"secret"`
	GeminiEmbedModel    string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"text-embedding-004"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY" masq:"secret"`
	OpenAIEmbedModel    string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OpenAIChatModel     string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY" masq:"secret"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"amm-knowledge"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3PathStyle bool   `envconfig:"S3_PATH_STYLE" default:"true"`

	ChunkSize    int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	MinChunkSize int    `envconfig:"MIN_CHUNK_SIZE" default:"50"`
	OCR          bool   `envconfig:"OCR" default:"true"`
	OCRLanguage  string `envconfig:"OCR_LANGUAGE" default:"eng"`

	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	SearchTimeout   time.Duration `envconfig:"SEARCH_TIMEOUT" default:"10s"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"60s"`
	RetentionScan   time.Duration `envconfig:"RETENTION_SCAN_INTERVAL" default:"1h"`

	SentryDSN         string `envconfig:"SENTRY_DSN"`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AMM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the engine cannot start with.
func (c *Config) Validate() error {
	if err := c.Chunking().Validate(); err != nil {
		return err
	}
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return domain.NewConfigError(fmt.Sprintf("unknown provider %q", c.Provider))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return domain.NewConfigError(fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	if c.EmbedTimeout < 0 || c.SearchTimeout < 0 || c.GenerateTimeout < 0 {
		return domain.NewConfigError("timeouts must not be negative")
	}
	return nil
}

// Chunking returns the chunker parameters.
func (c *Config) Chunking() chunking.Config {
	return chunking.Config{
		Size:    c.ChunkSize,
		Overlap: c.ChunkOverlap,
		MinSize: c.MinChunkSize,
	}
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// LoadDesign reads a YAML design file and applies defaults. Relative
// knowledge source paths stay relative; callers resolve them against the
// file's directory.
func LoadDesign(path string) (*domain.Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read design: %w", err)
	}
	return ParseDesign(data)
}

// ParseDesign decodes a YAML design. A design without an id gets one derived
// from its name so its stores survive restarts.
func ParseDesign(data []byte) (*domain.Design, error) {
	d := domain.Design{AdaptiveMemory: domain.AdaptiveMemory{Enabled: true}}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid design file", err)
	}
	if d.ID == "" && d.Name != "" {
		d.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("amm/design/"+d.Name)).String()
	}
	d.ApplyDefaults()
	if err := d.Validate(); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid design", err)
	}
	return &d, nil
}

// DesignDir is the directory relative knowledge source paths resolve against.
func DesignDir(path string) string {
	return filepath.Dir(path)
}
