package main

import (
	"time"

	"github.com/pictallion/pictallion_agent/internal"
	"github.com/pictallion/pictallion_agent/internal/health"
	"github.com/pictallion/pictallion_agent/internal/status"
	"github.com/pictallion/pictallion_agent/internal/upload"
	"github.com/pictallion/pictallion_agent/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const version = "1.0.0"

func main() {
	config, err := internal.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
		return
	}

	apiClient := upload.NewAPIClient(
		config.API.BaseURL,
		config.API.Token,
		time.Duration(config.API.TimeoutSeconds)*time.Second,
	)
	engine := upload.NewEngine(apiClient)

	hub := websocket.NewHub()
	go hub.Run()
	hub.Bind(engine)

	uploadEndpoints := upload.NewEndpoints(engine, apiClient, config.Upload.MaxBatchBytes)
	statusEndpoints := status.NewEndpoints(version, engine)
	healthEndpoints := health.NewEndpoints(version)
	wsHandler := websocket.NewHandler(hub, engine)

	requestHandler := internal.NewRequestHandler(config, uploadEndpoints, statusEndpoints, healthEndpoints, wsHandler)

	log.Info().
		Str("listenAddr", config.ListenAddr).
		Str("photoAPI", config.API.BaseURL).
		Msg("Upload agent started")

	server := &fasthttp.Server{
		Handler:            requestHandler,
		MaxRequestBodySize: int(config.Upload.MaxBatchBytes),
	}
	if err := server.ListenAndServe(config.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}
}
