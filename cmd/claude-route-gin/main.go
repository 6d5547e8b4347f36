// Command claude-route-gin is a gin-based alternate front-end over
// pkg/proxyserver, wiring gin's own logger/recovery/CORS middleware
// ahead of the shared chi handler rather than duplicating the routing
// and translation logic. Grounded on _examples/digitallysavvy-go-ai/examples/gin-server/main.go's
// gin.Default()+corsMiddleware()+PORT-env bootstrap.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

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

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(corsMiddleware())

	wrapped := gin.WrapH(handler)
	r.NoRoute(wrapped)
	r.NoMethod(wrapped)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Gin claude-route front-end on :%s", port)
	log.Fatal(r.Run(":" + port))
}

func buildSink() (debugsink.Sink, error) {
	dir := os.Getenv("CLAUDE_ROUTE_DEBUG_DIR")
	if dir == "" {
		return debugsink.Noop{}, nil
	}
	return debugsink.New(dir, debugsink.VerbosityErrorOnly, logr.Discard())
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
