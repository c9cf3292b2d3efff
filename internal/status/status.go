package status

import (
	"github.com/goccy/go-json"
	"github.com/pictallion/pictallion_agent/internal/upload"
	"github.com/valyala/fasthttp"
)

type StatusEndpoints struct {
	version string
	engine  *upload.Engine
}

func NewEndpoints(version string, engine *upload.Engine) *StatusEndpoints {
	return &StatusEndpoints{
		version: version,
		engine:  engine,
	}
}

type StatusResponse struct {
	Health  string          `json:"health"`
	Version string          `json:"version"`
	Uploads upload.Snapshot `json:"uploads"`
}

func (se *StatusEndpoints) Status(ctx *fasthttp.RequestCtx) {
	response := StatusResponse{
		Health:  "OK",
		Version: se.version,
		Uploads: se.engine.Snapshot(),
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)

	responseJSON, err := json.Marshal(response)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetBody(responseJSON)
}
