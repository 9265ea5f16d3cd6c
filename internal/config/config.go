package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UsageBackendMySQL  = "mysql"
	UsageBackendRedis  = "redis"
	UsageBackendMemory = "memory"

	DetectorBackendHTTP = "http"
	DetectorBackendPigo = "pigo"

	defaultDailySwapLimit = 5
)

// Config aggregates runtime configuration for the bot and supporting services.
type Config struct {
	BotToken            string
	AdminID             int64
	LogChannelID        int64
	UpdateChannelURL    string
	DiscussionGroupURL  string
	DailySwapLimit      int
	SessionTTL          time.Duration
	FaceSelection       string
	ResizeInterpolation string
	JPEGQuality         int
	MaxImageBytes       int64
	MaxImagePixels      int64
	RequestTimeout      time.Duration
	UsageBackend        string
	MySQLDSN            string
	RedisURL            string
	DetectorBackend     string
	DetectorURL         string
	DetectorAPIKey      string
	PigoCascadePath     string
	PigoMinFaceSize     int
	AdminListenAddr     string
	AdminUsername       string
	AdminPassword       string
	LogLevel            string
	LogEncoding         string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		BotToken:            os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminID:             getInt64("ADMIN_ID", 0),
		LogChannelID:        getInt64("LOG_CHANNEL_ID", 0),
		UpdateChannelURL:    getEnv("UPDATE_CHANNEL_URL", ""),
		DiscussionGroupURL:  getEnv("DISCUSSION_GROUP_URL", ""),
		DailySwapLimit:      getInt("DAILY_SWAP_LIMIT", defaultDailySwapLimit),
		SessionTTL:          getDuration("SESSION_TTL", 24*time.Hour),
		FaceSelection:       strings.ToLower(getEnv("FACE_SELECTION", "first")),
		ResizeInterpolation: strings.ToLower(getEnv("RESIZE_INTERPOLATION", "bilinear")),
		JPEGQuality:         getInt("JPEG_QUALITY", 90),
		MaxImageBytes:       getInt64("MAX_IMAGE_BYTES", 20<<20),
		MaxImagePixels:      getInt64("MAX_IMAGE_PIXELS", 40_000_000),
		RequestTimeout:      time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		UsageBackend:        strings.ToLower(getEnv("USAGE_BACKEND", UsageBackendMySQL)),
		MySQLDSN:            os.Getenv("MYSQL_DSN"),
		RedisURL:            os.Getenv("REDIS_URL"),
		DetectorBackend:     strings.ToLower(getEnv("DETECTOR_BACKEND", DetectorBackendHTTP)),
		DetectorURL:         strings.TrimRight(os.Getenv("DETECTOR_URL"), "/"),
		DetectorAPIKey:      os.Getenv("DETECTOR_API_KEY"),
		PigoCascadePath:     getEnv("PIGO_CASCADE_PATH", filepath.Join("cascade", "facefinder")),
		PigoMinFaceSize:     getInt("PIGO_MIN_FACE_SIZE", 40),
		AdminListenAddr:     getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "change-me"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogEncoding:         getEnv("LOG_ENCODING", "json"),
	}

	if cfg.DailySwapLimit <= 0 {
		cfg.DailySwapLimit = defaultDailySwapLimit
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}

	switch c.UsageBackend {
	case UsageBackendMySQL, UsageBackendMemory:
	case UsageBackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported usage backend: %s", c.UsageBackend)
	}

	switch c.DetectorBackend {
	case DetectorBackendHTTP:
		if c.DetectorURL == "" {
			missing = append(missing, "DETECTOR_URL")
		}
	case DetectorBackendPigo:
		if c.PigoCascadePath == "" {
			missing = append(missing, "PIGO_CASCADE_PATH")
		}
	default:
		return fmt.Errorf("unsupported detector backend: %s", c.DetectorBackend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// loadEnvFile overlays the first .env file found. Running without one is fine,
// the process environment alone may carry the configuration.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
