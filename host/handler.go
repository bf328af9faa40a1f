package host

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfsnip/config"
	"github.com/drummonds/pdfsnip/render"
	"github.com/drummonds/pdfsnip/snip"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger = slog.Default()

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Snipper      *snip.Snipper
	Echo         *echo.Echo
	ServerConfig config.ServerConfig

	// Mirror of the component's callback traffic, served by GET /api/state
	mu        sync.Mutex
	loading   bool
	hasError  bool
	lastError string
}

// NewServerHandler wires a Snipper component to an Echo instance. The
// handler is the component's host shell: it mirrors loading/error/view
// state notifications and persists snipped artifacts to the capture
// directory.
func NewServerHandler(e *echo.Echo, serverConfig config.ServerConfig, engine render.Engine) *ServerHandler {
	serverHandler := &ServerHandler{
		Echo:         e,
		ServerConfig: serverConfig,
	}
	serverHandler.Snipper = snip.NewSnipper(engine, serverConfig, snip.Callbacks{
		OnLoadingChange:   serverHandler.onLoadingChange,
		OnErrorChange:     serverHandler.onErrorChange,
		OnViewStateChange: serverHandler.onViewStateChange,
		OnSnip:            serverHandler.onSnip,
	})
	return serverHandler
}

func (serverHandler *ServerHandler) onLoadingChange(loading bool) {
	serverHandler.mu.Lock()
	serverHandler.loading = loading
	serverHandler.mu.Unlock()
}

func (serverHandler *ServerHandler) onErrorChange(hasError bool, message string) {
	serverHandler.mu.Lock()
	serverHandler.hasError = hasError
	serverHandler.lastError = message
	serverHandler.mu.Unlock()
}

func (serverHandler *ServerHandler) onViewStateChange(state snip.ViewState) {
	Logger.Debug("View state changed", "page", state.Page, "scale", state.Scale)
}

// onSnip persists each captured artifact under a ULID so repeated
// captures never collide on disk
func (serverHandler *ServerHandler) onSnip(artifact snip.CapturedArtifact) {
	captureDir := serverHandler.ServerConfig.CaptureDir
	if captureDir == "" {
		return
	}
	if err := os.MkdirAll(captureDir, os.ModePerm); err != nil {
		Logger.Error("Unable to create capture folder", "path", captureDir, "error", err)
		return
	}
	path := filepath.Join(captureDir, ulid.Make().String()+"-"+artifact.SuggestedFileName)
	if err := os.WriteFile(path, artifact.ImageData, 0644); err != nil {
		Logger.Error("Unable to write capture", "path", path, "error", err)
		return
	}
	Logger.Info("Capture saved", "path", path)
}

// status is a snapshot of the callback mirror
func (serverHandler *ServerHandler) status() (loading, hasError bool, message string) {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	return serverHandler.loading, serverHandler.hasError, serverHandler.lastError
}

// Close tears down the component owned by this handler
func (serverHandler *ServerHandler) Close() {
	serverHandler.Snipper.Close()
}
