package quiz

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the process-wide service configuration, read-only after
// startup. Values come from an optional YAML file overlaid by environment
// variables; the environment wins.
type Settings struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Secret string `yaml:"secret"`
	Email  string `yaml:"email"`

	WorkerTimeoutSeconds int  `yaml:"worker_timeout_seconds"`
	EnableOCR            bool `yaml:"enable_ocr"`

	JournalDB    string `yaml:"journal_db"`
	BrowserURL   string `yaml:"browser_url"`
	MCPTransport string `yaml:"mcp_transport"`

	// Tuning knobs, YAML-only. Zero means the component default.
	MaxDownloadBytes       int64  `yaml:"max_download_bytes"`
	DownloadTimeoutSeconds int    `yaml:"download_timeout_seconds"`
	FetchConcurrency       int    `yaml:"fetch_concurrency"`
	SettleDelayMs          int    `yaml:"settle_delay_ms"`
	OCRBinary              string `yaml:"ocr_binary"`
}

func defaultSettings() Settings {
	return Settings{
		Port:                 "8080",
		LogLevel:             "info",
		WorkerTimeoutSeconds: 170,
	}
}

// LoadSettings reads the YAML file at path (skipped when path is empty)
// and applies environment overrides.
func LoadSettings(path string) (Settings, error) {
	s := defaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("quiz: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("quiz: parse config %s: %w", path, err)
		}
	}

	s.Port = env("PORT", s.Port)
	s.LogLevel = env("LOG_LEVEL", s.LogLevel)
	s.Secret = env("QUIZ_SECRET", s.Secret)
	s.Email = env("QUIZ_EMAIL", s.Email)
	s.JournalDB = env("JOURNAL_DB", s.JournalDB)
	s.BrowserURL = env("BROWSER_URL", s.BrowserURL)
	s.MCPTransport = env("MCP_TRANSPORT", s.MCPTransport)

	if v := os.Getenv("WORKER_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, fmt.Errorf("quiz: invalid WORKER_TIMEOUT_SECONDS %q", v)
		}
		s.WorkerTimeoutSeconds = n
	}
	if v := os.Getenv("ENABLE_OCR"); v != "" {
		s.EnableOCR = v == "1" || v == "true" || v == "yes"
	}

	return s, nil
}

// WorkerTimeout returns the session budget as a duration.
func (s Settings) WorkerTimeout() time.Duration {
	return time.Duration(s.WorkerTimeoutSeconds) * time.Second
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
