package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DataFile  string `yaml:"dataFile"`
	OutputDir string `yaml:"outputDir"`

	TTSBaseURL       string  `yaml:"ttsBaseURL"`
	TTSAPIKey        string  `yaml:"ttsAPIKey"`
	TTSModel         string  `yaml:"ttsModel"`
	DefaultVoice     string  `yaml:"defaultVoice"`
	DefaultSpeed     float64 `yaml:"defaultSpeed"`
	SegmentLimit     int     `yaml:"segmentLimit"`
	SynthConcurrency int     `yaml:"synthConcurrency"`

	HistoryTurns int `yaml:"historyTurns"`

	StorageBackend string `yaml:"storageBackend"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RedisAddr             string   `yaml:"redisAddr"`
	RedisPassword         string   `yaml:"redisPassword"`
	ChatRateLimit         int      `yaml:"chatRateLimit"`
	ChatRateWindowSeconds int      `yaml:"chatRateWindowSeconds"`
	TrustedProxies        []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("TTS_BASE_URL"); v != "" {
		cfg.TTSBaseURL = v
	}
	if v := os.Getenv("TTS_API_KEY"); v != "" {
		cfg.TTSAPIKey = v
	}
	if v := os.Getenv("TTS_MODEL"); v != "" {
		cfg.TTSModel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("CHAT_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse CHAT_RATE_LIMIT: %w", err)
		}
		cfg.ChatRateLimit = n
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.DataFile == "" {
		cfg.DataFile = "library_data.json"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "outputs"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gpt-4o-mini-tts"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "alloy"
	}
	if cfg.DefaultSpeed <= 0 {
		cfg.DefaultSpeed = 1.0
	}
	if cfg.SegmentLimit <= 0 {
		cfg.SegmentLimit = 1000
	}
	if cfg.SynthConcurrency <= 0 {
		cfg.SynthConcurrency = 4
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "local"
	}
	if cfg.ChatRateWindowSeconds <= 0 {
		cfg.ChatRateWindowSeconds = 60
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.TTSBaseURL == "" {
		return errors.New("config: ttsBaseURL is required (set in config.yaml or TTS_BASE_URL)")
	}
	switch strings.ToLower(cfg.StorageBackend) {
	case "local":
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for the minio backend")
		}
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minio credentials are required (set in config.yaml or MINIO_ACCESS_KEY/MINIO_SECRET_KEY)")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q (use local or minio)", cfg.StorageBackend)
	}
	if cfg.ChatRateLimit > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when chatRateLimit is set")
	}
	return nil
}
