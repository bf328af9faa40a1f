package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pdfsnip/config"
	host "github.com/drummonds/pdfsnip/host"
	render "github.com/drummonds/pdfsnip/render"
	snip "github.com/drummonds/pdfsnip/snip"
	"github.com/drummonds/pdfsnip/webapp"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	snip.Logger = Logger
	host.Logger = Logger
}

// Combined mode: one process serves both the API and the webapp.
// Use cmd/backend and cmd/frontend to run them separately.
func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("✂️  pdfsnip")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("• Combined mode (API + webapp on one port)")
	fmt.Println("• Renderer: " + serverConfig.Renderer)
	fmt.Println(strings.Repeat("=", 50) + "\n")

	// Set up the PDF render engine
	engine, err := render.NewEngine(serverConfig.Renderer)
	if err != nil {
		Logger.Error("Unable to initialise PDF renderer", "renderer", serverConfig.Renderer, "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))

	serverHandler := host.NewServerHandler(e, serverConfig, engine)
	defer serverHandler.Close()
	serverHandler.RegisterRoutes()

	scheduler := serverHandler.InitializeSchedules() //initialize all the cron jobs
	defer scheduler.Stop()

	// Webapp: go-app shell plus static assets, same origin as the API
	appHandler := webapp.Handler()
	e.GET("/wasm_exec.js", func(c echo.Context) error {
		return c.File("web/wasm_exec.js")
	})
	e.Static("/web", "web")
	e.File("/webapp/webapp.css", "webapp/webapp.css")
	e.GET("/config.js", func(c echo.Context) error {
		// Same origin, so the webapp uses relative API URLs
		configJS := "window.pdfsnipConfig = { apiURL: \"\" };\n"
		c.Response().Header().Set("Content-Type", "application/javascript")
		return c.String(http.StatusOK, configJS)
	})
	e.Any("/*", echo.WrapHandler(appHandler))

	addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	Logger.Info("Starting pdfsnip", "address", addr)
	fmt.Printf("\n✅  pdfsnip running on %s\n", addr)
	fmt.Printf("🎨  Open http://%s in your browser\n\n", addr)

	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		Logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
