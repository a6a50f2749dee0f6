package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kumamontessori/kuma/internal/payments/mercadopago"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/internal/stripe"
)

// MercadoPagoWebhook receives payment notifications. GET answers the
// gateway's reachability probe.
func (h *Handlers) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read MercadoPago webhook body", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	notification, err := mercadopago.ParseNotification(r, body)
	if err != nil {
		logger.Warn("invalid MercadoPago notification", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if secret := strings.TrimSpace(h.config.MercadoPagoWebhookSecret); secret != "" {
		if err := mercadopago.VerifySignature(r, notification.DataID, secret); err != nil {
			logger.Warn("rejected MercadoPago webhook signature", "error", err, "data_id", notification.DataID)
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	if err := h.payments.HandleMercadoPago(ctx, notification); err != nil {
		if errors.Is(err, services.ErrInvalidNotification) {
			http.Error(w, "Invalid webhook", http.StatusBadRequest)
			return
		}
		logger.Error("failed to process MercadoPago webhook", "error", err, "data_id", notification.DataID)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StripeWebhook is only live when a signing secret is configured. Without
// one the route answers 404 and the payload is never parsed.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	if h.config == nil || strings.TrimSpace(h.config.StripeWebhookSecret) == "" {
		logger.Warn("rejected Stripe webhook: no signing secret configured")
		http.NotFound(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripe.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Error("failed to read Stripe webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if event == nil || event.ID == "" {
		logger.Error("missing Stripe event ID")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	if err := h.payments.HandleStripeEvent(ctx, event); err != nil {
		if errors.Is(err, services.ErrInvalidNotification) {
			logger.Warn("invalid Stripe event", "error", err, "type", event.Type, "event_id", event.ID)
			http.Error(w, "Invalid webhook", http.StatusBadRequest)
			return
		}
		logger.Error("failed to process Stripe webhook", "error", err, "type", event.Type, "event_id", event.ID)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
