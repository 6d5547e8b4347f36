// Command claude-route-fiber is a fiber-based alternate front-end over
// pkg/proxyserver, using fiber's own logger/CORS middleware ahead of an
// adaptor-wrapped chi handler. Grounded on _examples/digitallysavvy-go-ai/examples/fiber-server/main.go's
// fiber.New()+logger.New()+cors.New()+PORT-env bootstrap.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

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

	app := fiber.New(fiber.Config{
		AppName: "claude-route",
	})
	app.Use(logger.New())
	app.Use(cors.New())

	app.Use(adaptor.HTTPHandler(handler))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("🚀 Fiber claude-route front-end on :%s\n", port)
	log.Fatal(app.Listen(":" + port))
}

func buildSink() (debugsink.Sink, error) {
	dir := os.Getenv("CLAUDE_ROUTE_DEBUG_DIR")
	if dir == "" {
		return debugsink.Noop{}, nil
	}
	return debugsink.New(dir, debugsink.VerbosityErrorOnly, logr.Discard())
}
