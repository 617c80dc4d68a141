package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/order-desk/internal/common"
)

// Checker probes the dependencies the desk needs to serve traffic.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
	CheckERP(ctx context.Context) error
}

var draining atomic.Bool

// SetReady(false) makes readiness fail so the load balancer drains the
// instance before shutdown.
func SetReady(v bool) { draining.Store(!v) }

// Handler serves /health/live and /health/ready.
type Handler struct {
	Checker      Checker
	RedisTimeout time.Duration
}

// Report is the readiness body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live always answers ok while the process runs.
func (Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready answers 200 when every probe passes and 503 otherwise.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() || h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining", Checks: map[string]string{}})
		return
	}
	timeout := h.RedisTimeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx := r.Context()
	rep := Report{Status: "ready", Checks: map[string]string{
		"redis": outcome(h.Checker.PingRedis(ctx, timeout)),
		"erp":   outcome(h.Checker.CheckERP(ctx)),
	}}
	status := http.StatusOK
	for _, v := range rep.Checks {
		if v != "ok" {
			rep.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, status, rep)
}

func outcome(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
