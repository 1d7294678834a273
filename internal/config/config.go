package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types
const (
	SourceFile   = "file"
	SourceJobAPI = "jobapi"
)

// Storage types
const (
	StorageFile    = "file"
	StorageRedis   = "redis"
	StorageKVStore = "kvstore"
)

// AppConfig holds the complete application configuration
type AppConfig struct {
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Browser    BrowserConfig    `yaml:"browser"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Source     SourceConfig     `yaml:"source"`
	Storage    StorageConfig    `yaml:"storage"`
	IO         IOConfig         `yaml:"io"`
	Proxies    ProxyConfig      `yaml:"proxies"`
	Log        LogConfig        `yaml:"log"`
}

// CrawlerConfig holds the crawl orchestration settings
type CrawlerConfig struct {
	Selector          string        `yaml:"selector"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`
	// PageTimeout bounds a whole page visit; zero leaves only the step timeouts
	PageTimeout  time.Duration `yaml:"page_timeout"`
	PageInterval time.Duration `yaml:"page_interval"`
	// MaxAccounts caps concurrently crawled accounts; zero means no cap
	MaxAccounts int `yaml:"max_accounts"`
}

// BrowserConfig holds the headless browser settings
type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	NoSandbox bool   `yaml:"no_sandbox"`
	UserAgent string `yaml:"user_agent"`
	ExecPath  string `yaml:"exec_path"`
}

// ExtractionConfig holds the selectors used inside the matched element
type ExtractionConfig struct {
	HandleAttr   string `yaml:"handle_attr"`
	TextSelector string `yaml:"text_selector"`
	TimeSelector string `yaml:"time_selector"`
}

// SourceConfig selects where the account to URL mapping comes from
type SourceConfig struct {
	Type   string       `yaml:"type"`
	File   string       `yaml:"file"`
	JobAPI JobAPIConfig `yaml:"jobapi"`
}

// JobAPIConfig holds the upstream job execution API settings
type JobAPIConfig struct {
	BaseURL       string                 `yaml:"base_url"`
	ActorID       string                 `yaml:"actor_id"`
	Token         string                 `yaml:"token"`
	Input         map[string]interface{} `yaml:"input"`
	WaitForFinish int                    `yaml:"wait_for_finish"`
	RecordKey     string                 `yaml:"record_key"`
	MaxRetries    int                    `yaml:"max_retries"`
	Timeout       time.Duration          `yaml:"timeout"`
}

// StorageConfig selects where the ResultSet is persisted
type StorageConfig struct {
	Type    string        `yaml:"type"`
	Key     string        `yaml:"key"`
	File    FileConfig    `yaml:"file"`
	Redis   RedisConfig   `yaml:"redis"`
	KVStore KVStoreConfig `yaml:"kvstore"`
}

// FileConfig holds the file store settings
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig holds the redis store settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// KVStoreConfig holds the remote key-value store settings
type KVStoreConfig struct {
	BaseURL   string        `yaml:"base_url"`
	StoreID   string        `yaml:"store_id"`
	StoreName string        `yaml:"store_name"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
}

// IOConfig holds the run output settings
type IOConfig struct {
	OutputFile string `yaml:"output_file"`
}

// ProxyConfig holds the proxy configuration
type ProxyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Rotate  bool     `yaml:"rotate"`
	List    []string `yaml:"list"`
	Auth    struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Load loads the configuration from a YAML file on top of the defaults
func Load(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := CreateDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return config, nil
}

// CreateDefault creates a default configuration
func CreateDefault() *AppConfig {
	return &AppConfig{
		Crawler: CrawlerConfig{
			Selector:          DefaultSelector,
			NavigationTimeout: 30 * time.Second,
			SelectorTimeout:   30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
			UserAgent: DefaultUserAgents[0],
		},
		Extraction: ExtractionConfig{
			HandleAttr:   DefaultHandleAttr,
			TextSelector: DefaultTextSelector,
			TimeSelector: DefaultTimeSelector,
		},
		Source: SourceConfig{
			Type: SourceFile,
			File: "targets.yaml",
			JobAPI: JobAPIConfig{
				BaseURL:       DefaultJobAPIBaseURL,
				WaitForFinish: 60,
				RecordKey:     DefaultLinksRecordKey,
				MaxRetries:    3,
				Timeout:       90 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type: StorageFile,
			Key:  DefaultStoreKey,
			File: FileConfig{Dir: "data"},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "postcrawler",
			},
			KVStore: KVStoreConfig{
				BaseURL: DefaultJobAPIBaseURL,
				Timeout: 30 * time.Second,
			},
		},
		Proxies: ProxyConfig{
			Rotate: true,
			List:   []string{},
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// ApplyEnv overrides configuration values with environment variables
func (c *AppConfig) ApplyEnv() {
	c.Source.JobAPI.Token = getEnv("JOBAPI_TOKEN", c.Source.JobAPI.Token)
	c.Source.JobAPI.ActorID = getEnv("JOBAPI_ACTOR_ID", c.Source.JobAPI.ActorID)
	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.Redis.Addr = getEnv("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = getEnv("REDIS_PASSWORD", c.Storage.Redis.Password)
	if db, err := strconv.Atoi(getEnv("REDIS_DB", "")); err == nil {
		c.Storage.Redis.DB = db
	}
	// the key-value store shares the job API credentials unless told otherwise
	c.Storage.KVStore.Token = getEnv("KVSTORE_TOKEN", c.Storage.KVStore.Token)
	if c.Storage.KVStore.Token == "" {
		c.Storage.KVStore.Token = c.Source.JobAPI.Token
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if headless, err := strconv.ParseBool(getEnv("BROWSER_HEADLESS", "")); err == nil {
		c.Browser.Headless = headless
	}
}

// Validate checks that the configuration can drive a run
func (c *AppConfig) Validate() error {
	if c.Crawler.Selector == "" {
		return fmt.Errorf("crawler.selector is required")
	}
	if c.Crawler.NavigationTimeout <= 0 || c.Crawler.SelectorTimeout <= 0 {
		return fmt.Errorf("crawler timeouts must be positive")
	}
	if c.Crawler.MaxAccounts < 0 {
		return fmt.Errorf("crawler.max_accounts must not be negative")
	}

	switch c.Source.Type {
	case SourceFile:
		if c.Source.File == "" {
			return fmt.Errorf("source.file is required for the file source")
		}
	case SourceJobAPI:
		if c.Source.JobAPI.ActorID == "" || c.Source.JobAPI.Token == "" {
			return fmt.Errorf("source.jobapi requires actor_id and token")
		}
		if c.Source.JobAPI.MaxRetries < 0 {
			return fmt.Errorf("source.jobapi.max_retries must not be negative")
		}
	default:
		return fmt.Errorf("unsupported source type: %s", c.Source.Type)
	}

	if c.Storage.Key == "" {
		return fmt.Errorf("storage.key is required")
	}
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.File.Dir == "" {
			return fmt.Errorf("storage.file.dir is required for the file store")
		}
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis store")
		}
	case StorageKVStore:
		if c.Storage.KVStore.StoreID == "" && c.Storage.KVStore.StoreName == "" {
			return fmt.Errorf("storage.kvstore requires store_id or store_name")
		}
		if c.Storage.KVStore.Token == "" {
			return fmt.Errorf("storage.kvstore.token is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
