package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status   string `json:"status"`
	Identity int    `json:"identity,omitempty"`
	Role     string `json:"role,omitempty"`
	LastPoll string `json:"last_poll,omitempty"`
	Unread   int    `json:"unread"`
}

// NewStatusRouter serves /healthz for core and, when gatherer is set,
// /metrics. Health is 503 until a session is polling.
func NewStatusRouter(core *Core, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Unread: core.Notifier.Unread()}
		code := http.StatusOK

		if id := core.Identity(); id != nil && core.Poller.Running() {
			resp.Identity = id.ID
			resp.Role = string(id.Role)
			if last := core.Poller.LastPoll(); !last.IsZero() {
				resp.LastPoll = last.UTC().Format(time.RFC3339)
			}
		} else {
			resp.Status = "no session"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
