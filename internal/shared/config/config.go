package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds application configuration.
type Config struct {
	Port            string   `toml:"port"`
	Env             string   `toml:"env"`
	CORSAllowOrigin []string `toml:"cors_allow_origins"`
	DatabaseURL     string   `toml:"database_url"`

	CallbackBaseURL string `toml:"callback_base_url"`
	CallbackPath    string `toml:"callback_path"`
	CallbackTimeout int    `toml:"callback_timeout_seconds"`

	TempDir  string `toml:"temp_dir"`
	ModelDir string `toml:"model_dir"`

	QueueCapacity    int `toml:"queue_capacity"`
	DequeueTimeoutMs int `toml:"dequeue_timeout_ms"`
	MaxFrames        int `toml:"max_frames"`
	AudioSampleRate  int `toml:"audio_sample_rate"`
	FaceWorkMs       int `toml:"face_work_ms"`
	VoiceWorkMs      int `toml:"voice_work_ms"`

	FFmpegBin  string `toml:"ffmpeg_bin"`
	FFprobeBin string `toml:"ffprobe_bin"`

	IntakeRatePerSecond float64 `toml:"intake_rate_per_second"`
	IntakeBurst         int     `toml:"intake_burst"`
	MaxUploadBytes      int64   `toml:"max_upload_bytes"`

	SQSQueueURL string `toml:"sqs_queue_url"`
	AWSRegion   string `toml:"aws_region"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Defaults returns the configuration used when nothing else is provided.
func Defaults() Config {
	return Config{
		Port:                "5001",
		Env:                 "dev",
		CORSAllowOrigin:     []string{"http://localhost:5173"},
		CallbackBaseURL:     "http://localhost:5000",
		CallbackPath:        "/api/analysis/webhook/results",
		CallbackTimeout:     30,
		TempDir:             "./temp",
		ModelDir:            "./models",
		QueueCapacity:       256,
		DequeueTimeoutMs:    1000,
		MaxFrames:           30,
		AudioSampleRate:     16000,
		FaceWorkMs:          2000,
		VoiceWorkMs:         1500,
		FFmpegBin:           "ffmpeg",
		FFprobeBin:          "ffprobe",
		IntakeRatePerSecond: 5,
		IntakeBurst:         20,
		MaxUploadBytes:      100 << 20,
		AWSRegion:           "us-east-1",
		LogLevel:            "info",
	}
}

// Load reads configuration from an optional TOML file, .env files and environment variables,
// in increasing order of precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fileCfg, err := LoadFile(path, cfg)
		if err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		} else {
			cfg = fileCfg
		}
	}
	applyEnv(&cfg)
	return cfg
}

// LoadFile overlays the TOML file at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg := base
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// CallbackURL joins the callback base URL and path.
func (c Config) CallbackURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.CallbackBaseURL), "/")
	path := strings.TrimSpace(c.CallbackPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// CallbackTimeoutDuration returns the bounded delivery timeout.
func (c Config) CallbackTimeoutDuration() time.Duration {
	if c.CallbackTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CallbackTimeout) * time.Second
}

// DequeueTimeout returns how long the worker waits for a job before re-checking for shutdown.
func (c Config) DequeueTimeout() time.Duration {
	if c.DequeueTimeoutMs <= 0 {
		return time.Second
	}
	return time.Duration(c.DequeueTimeoutMs) * time.Millisecond
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", getEnv("ML_SERVICE_PORT", cfg.Port))
	cfg.Env = normalizeEnv(getEnv("ENV", cfg.Env))
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.CallbackBaseURL = getEnv("CALLBACK_BASE_URL", getEnv("SERVER_URL", cfg.CallbackBaseURL))
	cfg.CallbackPath = getEnv("CALLBACK_PATH", cfg.CallbackPath)
	cfg.CallbackTimeout = getEnvInt("CALLBACK_TIMEOUT_SECONDS", cfg.CallbackTimeout)
	cfg.TempDir = getEnv("TEMP_DIR", cfg.TempDir)
	cfg.ModelDir = getEnv("MODEL_DIR", cfg.ModelDir)
	cfg.QueueCapacity = getEnvInt("QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.DequeueTimeoutMs = getEnvInt("DEQUEUE_TIMEOUT_MS", cfg.DequeueTimeoutMs)
	cfg.MaxFrames = getEnvInt("MAX_FRAMES", cfg.MaxFrames)
	cfg.AudioSampleRate = getEnvInt("AUDIO_SAMPLE_RATE", cfg.AudioSampleRate)
	cfg.FaceWorkMs = getEnvInt("FACE_WORK_MS", cfg.FaceWorkMs)
	cfg.VoiceWorkMs = getEnvInt("VOICE_WORK_MS", cfg.VoiceWorkMs)
	cfg.FFmpegBin = getEnv("FFMPEG_BIN", cfg.FFmpegBin)
	cfg.FFprobeBin = getEnv("FFPROBE_BIN", cfg.FFprobeBin)
	cfg.IntakeBurst = getEnvInt("INTAKE_BURST", cfg.IntakeBurst)
	if raw := strings.TrimSpace(os.Getenv("INTAKE_RATE_PER_SECOND")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.IntakeRatePerSecond = v
		}
	}
	cfg.SQSQueueURL = getEnv("RA_SQS_QUEUE_URL", cfg.SQSQueueURL)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
}

// loadEnvFiles loads KEY=VALUE pairs from the given files if they exist.
// Variables already present in the environment win.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: load %s: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
