// Package posture exposes the probes over HTTP. Each handler runs one probe
// and writes whatever it returned — a summary or a probe-level error body —
// as a flat JSON document at 200. The 500 path belongs to the server's
// recovery middleware, not to the handlers.
package posture

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/johnnycloud/posture/pkg/models/api"
)

type CostProbe interface {
	Summary(ctx context.Context) any
	Anomalies(ctx context.Context) any
}

type ThreatProbe interface {
	Summary(ctx context.Context) any
}

type ComplianceProbe interface {
	FailedControls(ctx context.Context) any
}

type IdentityProbe interface {
	Hygiene(ctx context.Context) any
}

type ExposureProbe interface {
	Exposure(ctx context.Context) any
}

type Assistant interface {
	Reply(ctx context.Context, message string, history []api.ChatMessage) (string, error)
}

type Handler struct {
	cost       CostProbe
	threats    ThreatProbe
	compliance ComplianceProbe
	identity   IdentityProbe
	exposure   ExposureProbe
	assistant  Assistant
}

func NewHandler(
	cost CostProbe,
	threats ThreatProbe,
	compliance ComplianceProbe,
	identity IdentityProbe,
	exposure ExposureProbe,
	assistant Assistant,
) *Handler {
	return &Handler{
		cost:       cost,
		threats:    threats,
		compliance: compliance,
		identity:   identity,
		exposure:   exposure,
		assistant:  assistant,
	}
}

func (h *Handler) CostSummary(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.cost.Summary(r.Context()))
}

func (h *Handler) CostAnomalies(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.cost.Anomalies(r.Context()))
}

func (h *Handler) ThreatFindings(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.threats.Summary(r.Context()))
}

func (h *Handler) ComplianceFailures(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.compliance.FailedControls(r.Context()))
}

func (h *Handler) IdentityHygiene(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.identity.Hygiene(r.Context()))
}

func (h *Handler) NetworkExposure(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.exposure.Exposure(r.Context()))
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, r, http.StatusBadRequest, api.Error{Error: "bad_request", Detail: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		respond(w, r, http.StatusBadRequest, api.Error{Error: "bad_request", Detail: "message is required"})
		return
	}

	reply, err := h.assistant.Reply(r.Context(), req.Message, req.History)
	if err != nil {
		respond(w, r, http.StatusOK, api.Error{Error: "bedrock", Detail: err.Error()})
		return
	}
	respond(w, r, http.StatusOK, api.ChatReply{Reply: reply})
}

// Discovery returns the handler for unmatched paths: a listing of the probe
// endpoints, served at 200.
func (h *Handler) Discovery(endpoints []string) http.HandlerFunc {
	doc := api.Discovery{Endpoints: endpoints}
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, http.StatusOK, doc)
	}
}

func respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}
