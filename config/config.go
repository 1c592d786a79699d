package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/StockAnalyzer/consts"
)

const (
	DefaultOpenAIModel   = "gpt-4"
	DefaultDeepSeekModel = "deepseek-chat"
	DeepSeekBaseURL      = "https://api.deepseek.com/v1"
)

type Config struct {
	ProjectDir string `json:"project_dir"`

	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`

	LLMProvider    string `json:"llm_provider"`
	ModelName      string `json:"model_name"`
	BackendURL     string `json:"backend_url"`
	MaxTokens      int    `json:"max_tokens"`
	OpenAIAPIKey   string `json:"openai_api_key,omitempty"`
	DeepSeekAPIKey string `json:"deepseek_api_key,omitempty"`

	// Team configuration
	MaxTurns           int    `json:"max_turns"`
	MaxAgentSteps      int    `json:"max_agent_steps"`
	TerminationKeyword string `json:"termination_keyword"`
	OnlineTools        bool   `json:"online_tools"`

	// Code execution
	CodeWorkDir string `json:"code_work_dir"`
	PythonBin   string `json:"python_bin"`
	CodeTimeout string `json:"code_timeout"`

	// Result store
	StoreType      string `json:"store_type"`
	SQLitePath     string `json:"sqlite_path"`
	RedisAddr      string `json:"redis_addr"`
	RedisPassword  string `json:"redis_password,omitempty"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
	RedisTTL       string `json:"redis_ttl"`

	// Job runner
	MaxConcurrentJobs int    `json:"max_concurrent_jobs"`
	JobTimeout        string `json:"job_timeout"`

	LogLevel string `json:"log_level"`
	Debug    bool   `json:"debug"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key,omitempty"`
	LongportAppSecret   string `json:"longport_app_secret,omitempty"`
	LongportAccessToken string `json:"longport_access_token,omitempty"`
}

// DefaultConfig returns the defaults rooted at the working directory with
// .env and process environment overrides applied.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir: root,

		ServerHost: "0.0.0.0",
		ServerPort: 8000,

		LLMProvider: consts.ProviderOpenAI,
		ModelName:   DefaultOpenAIModel,
		MaxTokens:   4096,

		MaxTurns:           consts.DefaultMaxTurns,
		MaxAgentSteps:      12,
		TerminationKeyword: consts.DefaultTermKeyword,
		OnlineTools:        true,

		CodeWorkDir: filepath.Join(os.TempDir(), "analysis"),
		PythonBin:   "python3",
		CodeTimeout: "60s",

		StoreType:      consts.StoreMemory,
		SQLitePath:     filepath.Join(root, "data", "stockanalyzer.db"),
		RedisAddr:      "localhost:6379",
		RedisKeyPrefix: "stockanalyzer:job:",

		LogLevel: "info",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.ServerHost = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ServerPort = v
		}
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
		if c.LLMProvider == consts.ProviderDeepSeek && c.ModelName == DefaultOpenAIModel {
			c.ModelName = DefaultDeepSeekModel
		}
	}
	if val := os.Getenv("MODEL_NAME"); val != "" {
		c.ModelName = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("MAX_TURNS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTurns = v
		}
	}
	if val := os.Getenv("MAX_AGENT_STEPS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxAgentSteps = v
		}
	}
	if val, ok := os.LookupEnv("TERMINATION_KEYWORD"); ok {
		c.TerminationKeyword = val
	}
	if val := os.Getenv("ONLINE_TOOLS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.OnlineTools = enabled
		}
	}

	if val := os.Getenv("CODE_WORK_DIR"); val != "" {
		c.CodeWorkDir = val
	}
	if val := os.Getenv("PYTHON_BIN"); val != "" {
		c.PythonBin = val
	}
	if val := os.Getenv("CODE_TIMEOUT"); val != "" {
		c.CodeTimeout = val
	}

	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.StoreType = strings.ToLower(val)
	}
	if val := os.Getenv("SQLITE_PATH"); val != "" {
		c.SQLitePath = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.RedisAddr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.RedisPassword = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RedisDB = v
		}
	}
	if val := os.Getenv("REDIS_KEY_PREFIX"); val != "" {
		c.RedisKeyPrefix = val
	}
	if val := os.Getenv("REDIS_TTL"); val != "" {
		c.RedisTTL = val
	}

	if val := os.Getenv("MAX_CONCURRENT_JOBS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxConcurrentJobs = v
		}
	}
	if val := os.Getenv("JOB_TIMEOUT"); val != "" {
		c.JobTimeout = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv("STOCKANALYZER_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case consts.ProviderOpenAI, consts.ProviderDeepSeek:
	default:
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	switch c.StoreType {
	case consts.StoreMemory, consts.StoreSQLite, consts.StoreRedis:
	default:
		return fmt.Errorf("unsupported store_type %q", c.StoreType)
	}
	if c.StoreType == consts.StoreSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("sqlite_path is required for the sqlite store")
	}
	if c.StoreType == consts.StoreRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis_addr is required for the redis store")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port %d", c.ServerPort)
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("max_concurrent_jobs must not be negative")
	}
	for name, val := range map[string]string{
		"code_timeout": c.CodeTimeout,
		"job_timeout":  c.JobTimeout,
		"redis_ttl":    c.RedisTTL,
	} {
		if val == "" {
			continue
		}
		if d, err := time.ParseDuration(val); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", name, val)
		}
	}
	return nil
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == consts.ProviderDeepSeek {
		return c.DeepSeekAPIKey
	}
	return c.OpenAIAPIKey
}

// BaseURL returns the OpenAI-compatible endpoint, empty meaning the client default.
func (c *Config) BaseURL() string {
	if c.BackendURL != "" {
		return c.BackendURL
	}
	if c.LLMProvider == consts.ProviderDeepSeek {
		return DeepSeekBaseURL
	}
	return ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func (c *Config) CodeTimeoutDuration() time.Duration {
	return parseDuration(c.CodeTimeout, 60*time.Second)
}

// JobTimeoutDuration is zero when jobs may run without a deadline.
func (c *Config) JobTimeoutDuration() time.Duration {
	return parseDuration(c.JobTimeout, 0)
}

func (c *Config) RedisTTLDuration() time.Duration {
	return parseDuration(c.RedisTTL, 0)
}

func (c *Config) HasLongport() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.CodeWorkDir}
	if c.StoreType == consts.StoreSQLite {
		dirs = append(dirs, filepath.Dir(c.SQLitePath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
