package internal

import (
	"strings"

	"github.com/pictallion/pictallion_agent/internal/health"
	"github.com/pictallion/pictallion_agent/internal/middleware"
	"github.com/pictallion/pictallion_agent/internal/status"
	"github.com/pictallion/pictallion_agent/internal/upload"
	"github.com/pictallion/pictallion_agent/internal/websocket"
	"github.com/valyala/fasthttp"
)

func NewRequestHandler(config *Config, uploadEndpoints *upload.Endpoints, statusEndpoints *status.StatusEndpoints, healthEndpoints *health.HealthEndpoints, wsHandler *websocket.Handler) fasthttp.RequestHandler {
	corsMiddleware := middleware.NewCORSMiddleware(config.AllowedOrigins)

	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		method := string(ctx.Method())

		switch {
		case path == "/health":
			healthEndpoints.Health(ctx)
		case path == "/status":
			statusEndpoints.Status(ctx)
		case path == "/ws":
			wsHandler.HandleFastHTTP(ctx)

		case path == "/uploads/progress":
			if method == "GET" {
				uploadEndpoints.Progress(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}
		case path == "/uploads/conflicts":
			if method == "GET" {
				uploadEndpoints.Conflicts(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}
		case path == "/uploads/completed":
			if method == "DELETE" {
				uploadEndpoints.ClearCompleted(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}
		case path == "/uploads":
			switch method {
			case "GET":
				uploadEndpoints.List(ctx)
			case "POST":
				uploadEndpoints.Add(ctx)
			case "DELETE":
				uploadEndpoints.ClearAll(ctx)
			default:
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}
		case strings.HasPrefix(path, "/uploads/") && strings.HasSuffix(path, "/resolve"):
			parts := strings.Split(path, "/")
			if len(parts) == 4 && parts[3] == "resolve" && method == "POST" {
				ctx.SetUserValue("entryID", parts[2])
				uploadEndpoints.Resolve(ctx)
			} else if len(parts) == 4 && parts[3] == "resolve" {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			} else {
				ctx.Error("Not Found", fasthttp.StatusNotFound)
			}
		case strings.HasPrefix(path, "/uploads/"):
			parts := strings.Split(path, "/")
			if len(parts) == 3 {
				ctx.SetUserValue("entryID", parts[2])
				if method == "DELETE" {
					uploadEndpoints.Remove(ctx)
				} else {
					ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
				}
			} else {
				ctx.Error("Not Found", fasthttp.StatusNotFound)
			}

		default:
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		}
	}

	return corsMiddleware.Handle(handler)
}
