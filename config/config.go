package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string

	// Renderer selects the PDF rendering backend: "fitz" or "pdfium"
	Renderer string

	// Zoom window the view state is clamped to
	MinScale float64
	MaxScale float64

	// MaxUploadBytes is the ceiling for local file picks
	MaxUploadBytes int64

	// FetchTimeoutSeconds bounds remote document fetches
	FetchTimeoutSeconds int

	// HostDebounceMillis delays applying host-supplied view state
	HostDebounceMillis int

	// EchoGraceMillis is how long an internally-driven view state change
	// suppresses its own echo coming back from the host
	EchoGraceMillis int

	CaptureDir              string
	CaptureRetentionMinutes int

	FrontEndConfig
}

// FrontEndConfig stores all of the frontend settings
type FrontEndConfig struct {
	ServerAPIURL string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvInt64 gets a 64-bit integer environment variable with a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}
	frontEndConfigLive := FrontEndConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Load configuration from environment variables with defaults

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Renderer configuration
	serverConfigLive.Renderer = getEnv("RENDERER", "fitz")
	logger.Info("Renderer configuration loaded", "backend", serverConfigLive.Renderer)

	// View state configuration
	serverConfigLive.MinScale = getEnvFloat("MIN_SCALE", 0.5)
	serverConfigLive.MaxScale = getEnvFloat("MAX_SCALE", 3.0)
	if serverConfigLive.MinScale <= 0 || serverConfigLive.MaxScale < serverConfigLive.MinScale {
		logger.Warn("Invalid scale window, falling back to defaults",
			"minScale", serverConfigLive.MinScale, "maxScale", serverConfigLive.MaxScale)
		serverConfigLive.MinScale = 0.5
		serverConfigLive.MaxScale = 3.0
	}
	serverConfigLive.HostDebounceMillis = getEnvInt("HOST_DEBOUNCE_MS", 100)
	serverConfigLive.EchoGraceMillis = getEnvInt("ECHO_GRACE_MS", 150)

	// Upload and fetch limits
	serverConfigLive.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", 50*1024*1024)
	serverConfigLive.FetchTimeoutSeconds = getEnvInt("FETCH_TIMEOUT_SECONDS", 30)

	fmt.Println("\n========================================")
	fmt.Println("   pdfsnip - PDF Snipping Tool")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdfsnip.log"))
	fmt.Println("Initializing...")

	// Capture storage configuration
	captureDirRelative := filepath.ToSlash(getEnv("CAPTURE_PATH", "captures"))
	captureDirAbs, err := filepath.Abs(captureDirRelative)
	if err != nil {
		logger.Error("Error creating capture path", "path", captureDirRelative, "error", err)
	}
	serverConfigLive.CaptureDir = captureDirAbs
	serverConfigLive.CaptureRetentionMinutes = getEnvInt("CAPTURE_RETENTION_MINUTES", 60)

	// Frontend configuration
	frontEndConfigLive.ServerAPIURL = getEnv("SERVER_API_URL", "")
	serverConfigLive.FrontEndConfig = frontEndConfigLive

	return serverConfigLive, logger
}

// SetupFrontend loads configuration for frontend-only server
func SetupFrontend() (FrontEndConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
	_ = godotenv.Load("frontend.env")

	logger := setupLogging()
	Logger = logger

	frontendConfig := FrontEndConfig{}

	frontendConfig.ServerAPIURL = getEnv("SERVER_API_URL", "http://localhost:8000")

	logger.Info("Frontend configuration loaded", "apiURL", frontendConfig.ServerAPIURL)

	return frontendConfig, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfsnip.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
