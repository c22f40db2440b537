package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRemote = "remote"
	BackendONNX   = "onnx"
)

type Config struct {
	Addr             string
	InferenceURL     string
	InferenceBackend string
	InferenceTimeout time.Duration
	MetadataPath     string
	ModelPath        string
	ONNXLibPath      string
	CORSOrigins      []string
	MaxUploadMB      int
	LogLevel         string
	LogFormat        string
}

// LoadDotEnv reads the given .env files into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func Load() *Config {
	return &Config{
		Addr:             getEnv("ADDR", "localhost:8000"),
		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:8501/v1/models/tumor_model:predict"),
		InferenceBackend: getEnv("INFERENCE_BACKEND", BackendRemote),
		InferenceTimeout: getEnvAsDuration("INFERENCE_TIMEOUT", 0),
		MetadataPath:     getEnv("METADATA_PATH", ""),
		ModelPath:        getEnv("MODEL_PATH", "models/tumor_model.onnx"),
		ONNXLibPath:      getEnv("ONNX_LIB_PATH", ""),
		CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"http://localhost", "http://localhost:3000"}),
		MaxUploadMB:      getEnvAsInt("MAX_UPLOAD_MB", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports the first setting that cannot be used to start the service.
func (c *Config) Validate() error {
	switch c.InferenceBackend {
	case BackendRemote:
		if c.InferenceURL == "" {
			return errors.New("inference url must be set for the remote backend")
		}
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("model path must be set for the onnx backend")
		}
	default:
		return fmt.Errorf("unknown inference backend %q", c.InferenceBackend)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	if c.InferenceTimeout < 0 {
		return fmt.Errorf("inference timeout must not be negative, got %s", c.InferenceTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
