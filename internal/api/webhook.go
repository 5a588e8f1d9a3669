/**
 * @description
 * This file contains the HTTP handler for payment webhooks from Dodo Payments. It buffers
 * the body, optionally verifies the Standard Webhooks signature, and hands the payload to
 * the reconciler. The provider always gets HTTP 200; the JSON body says whether the event
 * was accepted.
 */
package api

import (
	"io"
	"net/http"

	"github.com/JojoDuke/papermind-ai-backend/internal/app"
	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookResponse is the body returned to the payment provider.
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WebhookHandler processes incoming payment webhooks.
type WebhookHandler struct {
	reconciler *app.Reconciler
	verifier   *SignatureVerifier
	logger     zerolog.Logger
}

// NewWebhookHandler creates the webhook endpoint. A nil verifier disables signature checks.
func NewWebhookHandler(reconciler *app.Reconciler, verifier *SignatureVerifier, logger zerolog.Logger) *WebhookHandler {
	logger = logger.With().Str("component", "webhook_handler").Logger()
	if verifier == nil {
		logger.Warn().Msg("DODO_WEBHOOK_SECRET is not set; skipping webhook signature validation")
	}
	return &WebhookHandler{reconciler: reconciler, verifier: verifier, logger: logger}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read webhook body")
		h.respond(w, h.reconciler.Reject(err.Error()))
		return
	}

	deliveryID := r.Header.Get(HeaderWebhookID)
	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			h.logger.Warn().Err(err).Str("delivery_id", deliveryID).Msg("webhook signature rejected")
			h.respond(w, h.reconciler.Reject(app.ReasonInvalidSignature))
			return
		}
	}

	h.respond(w, h.reconciler.ReconcilePayload(r.Context(), body, deliveryID))
}

func (h *WebhookHandler) respond(w http.ResponseWriter, out app.Outcome) {
	if out.Acknowledged() {
		respondWithJSON(w, http.StatusOK, WebhookResponse{Status: "ok"})
		return
	}
	respondWithJSON(w, http.StatusOK, WebhookResponse{Status: "error", Message: out.Reason})
}
