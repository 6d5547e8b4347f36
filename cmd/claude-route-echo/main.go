// Command claude-route-echo is an echo-based alternate front-end over
// pkg/proxyserver, using echo's own logger/recovery/CORS middleware
// ahead of a WrapHandler-wrapped chi handler. Grounded on
// _examples/digitallysavvy-go-ai/examples/echo-server/main.go's echo.New()+middleware stack+PORT-env
// bootstrap.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudip358/claude-route/pkg/config"
	"github.com/sudip358/claude-route/pkg/debugsink"
	"github.com/sudip358/claude-route/pkg/proxyserver"
)

func main() {
	configPath := os.Getenv("CLAUDE_ROUTE_CONFIG")
	if configPath == "" {
		log.Fatal("CLAUDE_ROUTE_CONFIG environment variable is required")
	}

	reg, err := config.LoadFile(configPath)
	if err != nil {
		log.Fatalf("failed to load provider config: %v", err)
	}

	sink, err := buildSink()
	if err != nil {
		log.Fatalf("failed to build debug sink: %v", err)
	}
	defer sink.Close()

	_, handler := proxyserver.NewServer(proxyserver.Config{
		Registry:  config.NewStatic(reg),
		DebugSink: sink,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	wrapped := echo.WrapHandler(handler)
	e.Any("/*", wrapped)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Echo claude-route front-end on :%s", port)
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func buildSink() (debugsink.Sink, error) {
	dir := os.Getenv("CLAUDE_ROUTE_DEBUG_DIR")
	if dir == "" {
		return debugsink.Noop{}, nil
	}
	return debugsink.New(dir, debugsink.VerbosityErrorOnly, logr.Discard())
}
