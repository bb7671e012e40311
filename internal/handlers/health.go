package handlers

import (
	"context"
	"net/http"

	"github.com/mpilhlt/docinator/internal/models"

	huma "github.com/danielgtaylor/huma/v2"
)

// HealthInfo is reported by the health endpoint.
type HealthInfo struct {
	Converter string
	Model     string
	Version   string
}

// RegisterHealthRoutes registers the unauthenticated liveness endpoint
func RegisterHealthRoutes(api huma.API, info HealthInfo) {
	getHealthOp := huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report service status",
		Tags:        []string{"admin"},
	}
	huma.Register(api, getHealthOp, func(ctx context.Context, _ *models.HealthRequest) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Converter = info.Converter
		resp.Body.Model = info.Model
		resp.Body.Version = info.Version
		return resp, nil
	})
}
