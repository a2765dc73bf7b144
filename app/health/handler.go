package health

import (
	"context"
	"net/http"
	"time"

	"github.com/mytheresa/go-storefront/app/web"
	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

type Response struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

type HealthHandler struct {
	db  HealthChecker
	log *zap.Logger
	now func() time.Time
}

func NewHealthHandler(db HealthChecker, log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{db: db, log: log, now: time.Now}
}

func (h *HealthHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ts := h.now().UTC().Format(time.RFC3339)

	if !h.db.HealthCheck(r.Context()) {
		requestID := web.RequestIDFrom(r.Context())
		h.log.Warn("health check failed - database disconnected", zap.String("request_id", requestID))
		web.JSON(w, http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Database:  "disconnected",
			Timestamp: ts,
			RequestID: requestID,
		})
		return
	}

	web.JSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: ts,
	})
}
