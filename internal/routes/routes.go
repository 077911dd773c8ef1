package routes

import (
	"net/http"

	"github.com/drivesink/drivesink/internal/app"
	"github.com/drivesink/drivesink/internal/handler"
	"github.com/drivesink/drivesink/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler()
	webhook := handler.NewWebhookHandler(app.Monitor)
	setup := handler.NewSetupHandler(app.Channels)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Health)

	// Drive change notifications
	mux.HandleFunc("POST /webhook", webhook.Webhook)

	// Operator endpoint (rate limited)
	rateLimiter := middleware.RateLimitSetup()
	mux.HandleFunc("POST /setup", rateLimiter(setup.Setup))

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestLogging,
	)
}
