package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/carrier"
	"github.com/kumamontessori/kuma/internal/services"
)

func (h *Handlers) APIShippingQuote(w http.ResponseWriter, r *http.Request) {
	var req carrier.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := h.shipping.Quote(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// APIShippingLabel requests a carrier label for an arbitrary recipient. The
// admin order page uses GenerateLabel instead, which also updates the order.
func (h *Handlers) APIShippingLabel(w http.ResponseWriter, r *http.Request) {
	var req carrier.LabelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	label, err := h.shipping.CreateLabel(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

func (h *Handlers) APIShippingTracking(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	number := strings.TrimSpace(query.Get("number"))
	if number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Número de seguimiento requerido"})
		return
	}

	tracking, err := h.shipping.Track(r.Context(), number, query.Get("document"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}

func (h *Handlers) APIShippingCreate(w http.ResponseWriter, r *http.Request) {
	var input services.CreateShippingInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	shipping, err := h.shipping.CreateShipping(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shipping)
}

// APIShippingStatus appends a status event to a shipment.
func (h *Handlers) APIShippingStatus(w http.ResponseWriter, r *http.Request) {
	shippingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, services.ErrShippingNotFound)
		return
	}

	var input services.UpdateShippingInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	shipping, err := h.shipping.UpdateShippingStatus(r.Context(), shippingID, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipping)
}

// APIShipmentTracking returns the stored history of one of our shipments.
func (h *Handlers) APIShipmentTracking(w http.ResponseWriter, r *http.Request) {
	info, err := h.shipping.TrackShipment(r.Context(), mux.Vars(r)["number"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
