// Package handlers provides the HTTP endpoints mounted next to the MCP
// route when the server runs with --http: liveness, service metadata, and
// a readiness report covering the backend binary, the session registry,
// and the translation model.
package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/config"
	"github.com/queryward/queryward/pkg/logging"
	"github.com/queryward/queryward/pkg/registry"
)

// statusProbeTimeout bounds the backend version probe; the backend CLI can
// take several seconds to start.
const statusProbeTimeout = 10 * time.Second

// BackendProber reports whether the execution backend binary responds and
// at what version.
type BackendProber interface {
	Check(ctx context.Context) (string, error)
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// StatusResponse is the readiness report served at /status.
type StatusResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Backend  BackendStatus  `json:"backend"`
	Registry RegistryStatus `json:"registry"`
	LLM      LLMStatus      `json:"llm"`
}

// BackendStatus describes whether the backend binary answered the version
// probe.
type BackendStatus struct {
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegistryStatus describes the session history storage.
type RegistryStatus struct {
	Dir      string `json:"dir"`
	Writable bool   `json:"writable"`
	Sessions int    `json:"sessions"`
	Error    string `json:"error,omitempty"`
}

// LLMStatus describes whether natural-language translation is available.
type LLMStatus struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
}

// HealthHandler handles health check, ping, and readiness endpoints.
type HealthHandler struct {
	cfg        *config.Config
	prober     BackendProber
	registries *registry.Factory
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with the given dependencies.
func NewHealthHandler(cfg *config.Config, prober BackendProber, registries *registry.Factory, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, prober: prober, registries: registries, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
	mux.HandleFunc("/status", h.Status)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for load balancer health checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get hostname")
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "queryward",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Status handles GET /status requests.
// Probes the backend binary and the registry storage; any failed check
// degrades the report and flips the status code to 503 so orchestrators
// hold traffic until the dependencies recover.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cancel()

	response := StatusResponse{
		Status:  "ok",
		Version: h.cfg.Version,
		LLM: LLMStatus{
			Configured: h.cfg.LLM.Configured(),
			Provider:   h.cfg.LLM.Provider,
			Model:      h.cfg.LLM.Model,
		},
	}

	if version, err := h.prober.Check(ctx); err != nil {
		response.Status = "degraded"
		response.Backend.Error = logging.SanitizeError(err)
	} else {
		response.Backend.OK = true
		response.Backend.Version = version
	}

	response.Registry.Dir = h.registries.Dir()
	if err := h.registries.CheckWritable(); err != nil {
		response.Status = "degraded"
		response.Registry.Error = err.Error()
	} else {
		response.Registry.Writable = true
	}
	if sessions, err := h.registries.Sessions(); err == nil {
		response.Registry.Sessions = len(sessions)
	}

	statusCode := http.StatusOK
	if response.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}
	if err := WriteJSON(w, statusCode, response); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}
