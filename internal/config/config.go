package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

// Config is the full application configuration.
type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"development"`
	Log       LogConfig       `yaml:"log"`
	AI        AIConfig        `yaml:"ai"`
	Validator ValidatorConfig `yaml:"validator"`
	Algod     AlgodConfig     `yaml:"algod"`
	Schema    SchemaConfig    `yaml:"schema"`
	Audit     AuditConfig     `yaml:"audit"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Artifacts ArtifactConfig  `yaml:"artifacts"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Server    ServerConfig    `yaml:"server"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	OutputPath string `yaml:"output_path" env:"LOG_OUTPUT_PATH"`
}

// AIConfig holds provider credentials and generation defaults.
type AIConfig struct {
	Provider          string        `yaml:"provider" env:"AI_PROVIDER" env-default:"perplexity"`
	Model             string        `yaml:"model" env:"AI_MODEL" env-default:"sonar"`
	Temperature       float64       `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.2"`
	MaxRetries        int           `yaml:"max_retries" env:"AI_MAX_RETRIES" env-default:"3"`
	MaxTokens         int           `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"2000"`
	Timeout           time.Duration `yaml:"timeout" env:"AI_TIMEOUT" env-default:"120s"`
	BaseRetryDelay    time.Duration `yaml:"base_retry_delay" env:"AI_BASE_RETRY_DELAY" env-default:"1s"`
	OpenAIAPIKey      string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	PerplexityAPIKey  string        `yaml:"perplexity_api_key" env:"PERPLEXITY_API_KEY"`
	PerplexityBaseURL string        `yaml:"perplexity_base_url" env:"PERPLEXITY_BASE_URL" env-default:"https://api.perplexity.ai"`
	OllamaBaseURL     string        `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL"`
	SystemPromptPath  string        `yaml:"system_prompt_path" env:"AI_SYSTEM_PROMPT_PATH"`
}

// ValidatorConfig overrides the built-in marker and deny lists when non-empty.
type ValidatorConfig struct {
	EntryMarkers []string `yaml:"entry_markers" env:"VALIDATOR_ENTRY_MARKERS" env-separator:","`
	DenyPatterns []string `yaml:"deny_patterns" env:"VALIDATOR_DENY_PATTERNS" env-separator:";"`
	DenyRegexps  []string `yaml:"deny_regexps" env:"VALIDATOR_DENY_REGEXPS" env-separator:";"`
}

type AlgodConfig struct {
	Address     string        `yaml:"address" env:"ALGOD_ADDRESS" env-default:"https://testnet-api.algonode.cloud"`
	Token       string        `yaml:"token" env:"ALGOD_TOKEN" env-default:"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"`
	Network     string        `yaml:"network" env:"ALGORAND_NETWORK" env-default:"testnet"`
	ExplorerURL string        `yaml:"explorer_url" env:"ALGORAND_EXPLORER_URL" env-default:"https://testnet.explorer.perawallet.app"`
	FaucetURL   string        `yaml:"faucet_url" env:"ALGORAND_FAUCET_URL" env-default:"https://bank.testnet.algorand.network/"`
	TEALVersion int           `yaml:"teal_version" env:"TEAL_VERSION" env-default:"8"`
	WaitRounds  uint64        `yaml:"wait_rounds" env:"DEPLOY_WAIT_ROUNDS" env-default:"4"`
	Timeout     time.Duration `yaml:"timeout" env:"ALGOD_TIMEOUT" env-default:"30s"`
}

// SchemaConfig mirrors the default and extended storage presets.
type SchemaConfig struct {
	Profile             string `yaml:"profile" env:"SCHEMA_PROFILE" env-default:"default"`
	DefaultGlobalUints  uint64 `yaml:"default_global_uints" env-default:"4"`
	DefaultGlobalBytes  uint64 `yaml:"default_global_bytes" env-default:"4"`
	DefaultLocalUints   uint64 `yaml:"default_local_uints" env-default:"2"`
	DefaultLocalBytes   uint64 `yaml:"default_local_bytes" env-default:"2"`
	ExtendedGlobalUints uint64 `yaml:"extended_global_uints" env-default:"8"`
	ExtendedGlobalBytes uint64 `yaml:"extended_global_bytes" env-default:"8"`
	ExtendedLocalUints  uint64 `yaml:"extended_local_uints" env-default:"4"`
	ExtendedLocalBytes  uint64 `yaml:"extended_local_bytes" env-default:"4"`
}

type AuditConfig struct {
	FilePath string `yaml:"file_path" env:"AUDIT_LOG_PATH" env-default:"ai_generations.log"`
	Postgres bool   `yaml:"postgres" env:"AUDIT_POSTGRES" env-default:"false"`
}

// DatabaseConfig is optional; an empty DSN disables Postgres features.
type DatabaseConfig struct {
	DSN      string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxConns int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	Timeout  time.Duration `yaml:"timeout" env:"DB_TIMEOUT" env-default:"10s"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"COMPILE_CACHE_TTL" env-default:"24h"`
}

type RabbitMQConfig struct {
	URL   string `yaml:"url" env:"RABBITMQ_URL"`
	Queue string `yaml:"queue" env:"DEPLOYMENT_EVENTS_QUEUE" env-default:"contract_deployments"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	Job            string `yaml:"job" env:"METRICS_JOB" env-default:"contractor"`
}

type ArtifactConfig struct {
	Dir string `yaml:"dir" env:"ARTIFACTS_DIR" env-default:"smart_contracts/ai_generated"`
}

type KeystoreConfig struct {
	Path       string `yaml:"path" env:"KEYSTORE_PATH" env-default:"keystore.json"`
	Passphrase string `yaml:"-" env:"KEYSTORE_PASSPHRASE"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// GenerateRateLimit is the number of generate calls a client may make per minute.
	GenerateRateLimit uint `yaml:"generate_rate_limit" env:"GENERATE_RATE_LIMIT" env-default:"10"`
}

// Load reads .env, then the optional YAML file, then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	cfg.AI.OpenAIAPIKey = secretOr(cfg.AI.OpenAIAPIKey, "openai_api_key")
	cfg.AI.PerplexityAPIKey = secretOr(cfg.AI.PerplexityAPIKey, "perplexity_api_key")
	cfg.Server.JWTSecret = secretOr(cfg.Server.JWTSecret, "jwt_secret")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that the rest of the application relies on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := models.ParseProvider(c.AI.Provider); err != nil {
		errs = append(errs, err)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		errs = append(errs, fmt.Errorf("ai.temperature must be within [0, 1], got %v", c.AI.Temperature))
	}
	if c.AI.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("ai.max_retries must be at least 1, got %d", c.AI.MaxRetries))
	}
	if c.Algod.WaitRounds < 1 {
		errs = append(errs, errors.New("algod.wait_rounds must be at least 1"))
	}
	if c.Algod.Address == "" {
		errs = append(errs, errors.New("algod.address is required"))
	}
	if _, _, err := c.Schema.Resolve(c.Schema.Profile); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Resolve returns the global and local schemas of a named profile.
func (s SchemaConfig) Resolve(profile string) (global, local models.StateSchema, err error) {
	switch strings.ToLower(profile) {
	case "", "default":
		global = models.StateSchema{NumUints: s.DefaultGlobalUints, NumByteSlices: s.DefaultGlobalBytes}
		local = models.StateSchema{NumUints: s.DefaultLocalUints, NumByteSlices: s.DefaultLocalBytes}
	case "extended":
		global = models.StateSchema{NumUints: s.ExtendedGlobalUints, NumByteSlices: s.ExtendedGlobalBytes}
		local = models.StateSchema{NumUints: s.ExtendedLocalUints, NumByteSlices: s.ExtendedLocalBytes}
	default:
		return global, local, fmt.Errorf("unknown schema profile %q", profile)
	}
	return global, local, nil
}

// secretOr falls back to a Docker secret file when value is empty.
func secretOr(value, secretName string) string {
	if value != "" {
		return value
	}
	secret, err := ReadSecret(secretName)
	if err != nil {
		return ""
	}
	return secret
}

// ReadSecret reads a Docker secret from the standard mount path.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", secretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

var secretsDir = "/run/secrets"
