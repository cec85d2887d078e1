package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	API       APIConfig
	Socket    SocketConfig
	Toast     ToastConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

// DatabaseConfig selects the hub's device store. Store is "memory" or "couchdb";
// the remaining fields only apply to couchdb.
type DatabaseConfig struct {
	Store    string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

// APIConfig is the client side of the REST contract.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SocketConfig is the client side of the push channel.
type SocketConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	ReconnectAttempts int
}

type ToastConfig struct {
	Duration time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	apiTimeout, err := time.ParseDuration(getEnv("DEVICE_API_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_API_TIMEOUT: %w", err)
	}

	reconnectDelay, err := time.ParseDuration(getEnv("DEVICE_SOCKET_RECONNECT_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_SOCKET_RECONNECT_DELAY: %w", err)
	}

	toastDuration, err := time.ParseDuration(getEnv("TOAST_DURATION", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOAST_DURATION: %w", err)
	}

	store := getEnv("DEVICE_STORE", "memory")
	if store != "memory" && store != "couchdb" {
		return nil, fmt.Errorf("invalid DEVICE_STORE %q: want memory or couchdb", store)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Store:    store,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "devices"),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 65536)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PATCH,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		API: APIConfig{
			BaseURL: getEnv("DEVICE_API_URL", "http://localhost:8080/api/v1"),
			Timeout: apiTimeout,
		},
		Socket: SocketConfig{
			URL:               getEnv("DEVICE_SOCKET_URL", "http://localhost:8080"),
			ReconnectDelay:    reconnectDelay,
			ReconnectAttempts: getEnvAsInt("DEVICE_SOCKET_RECONNECT_ATTEMPTS", 5),
		},
		Toast: ToastConfig{
			Duration: toastDuration,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
