package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/followfeed/internal/database"
)

// healthCheckTimeout は依存先1つあたりの疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthCheck はヘルスチェック対象の依存先。
// Criticalがfalseの依存先が落ちていても200（degraded）を返す。
type HealthCheck struct {
	Name     string
	Pinger   database.Pinger
	Critical bool
}

// HealthHandler は依存先の疎通状況を返すHTTPハンドラー。
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checks []HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeHTTP は全依存先に疎通確認を行い、結果を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
	}
	statusCode := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.Pinger.PingContext(ctx)
		cancel()

		if err == nil {
			resp.Checks[c.Name] = "ok"
			continue
		}

		slog.Warn("health check failed",
			slog.String("dependency", c.Name),
			slog.String("error", err.Error()),
		)
		resp.Checks[c.Name] = "unavailable"
		if c.Critical {
			resp.Status = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, statusCode, resp)
}
