package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/cart"
	"github.com/kumamontessori/kuma/internal/catalog"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/ui/views"
)

func (h *Handlers) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	c := h.carts.Load(r)
	if c.IsEmpty() {
		http.Redirect(w, r, "/carrito", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, views.CheckoutPage(h.storeMeta(r, "Finalizar compra"), c, views.CheckoutForm{}))
}

// CheckoutSubmit creates the order from the cart cookie and sends the
// customer to the payment gateway.
func (h *Handlers) CheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := h.carts.Load(r)

	form := views.CheckoutForm{
		Name:           strings.TrimSpace(r.PostFormValue("name")),
		Email:          strings.TrimSpace(r.PostFormValue("email")),
		Phone:          strings.TrimSpace(r.PostFormValue("phone")),
		Address:        strings.TrimSpace(r.PostFormValue("address")),
		City:           strings.TrimSpace(r.PostFormValue("city")),
		PostalCode:     strings.TrimSpace(r.PostFormValue("postal_code")),
		Notes:          strings.TrimSpace(r.PostFormValue("notes")),
		ShippingMethod: strings.TrimSpace(r.PostFormValue("shipping_method")),
	}

	result, err := h.checkout.CreateOrder(ctx, services.CheckoutInput{
		Items: linesFromCart(c),
		Customer: services.CustomerInput{
			Name:       form.Name,
			Email:      form.Email,
			Phone:      form.Phone,
			Address:    form.Address,
			City:       form.City,
			PostalCode: form.PostalCode,
			Notes:      form.Notes,
		},
		ShippingMethod: form.ShippingMethod,
	})
	if err != nil {
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.loggerFromContext(ctx).Error("checkout failed", "error", err)
		}
		meta := h.storeMeta(r, "Finalizar compra")
		meta.Error = message
		h.render(w, r, status, views.CheckoutPage(meta, c, form))
		return
	}

	http.Redirect(w, r, result.InitPoint, http.StatusSeeOther)
}

type checkoutRequest struct {
	Items []struct {
		ProductID uuid.UUID `json:"productId"`
		Quantity  int       `json:"quantity"`
	} `json:"items"`
	Customer struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postalCode"`
		Notes      string `json:"notes"`
	} `json:"customer"`
	ShippingMethod string `json:"shippingMethod"`
}

// APICheckout is the JSON form of CheckoutSubmit. Items default to the cart
// cookie when the body carries none.
func (h *Handlers) APICheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lines := make([]catalog.Line, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		lines = linesFromCart(h.carts.Load(r))
	}

	result, err := h.checkout.CreateOrder(r.Context(), services.CheckoutInput{
		Items: lines,
		Customer: services.CustomerInput{
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Phone:      req.Customer.Phone,
			Address:    req.Customer.Address,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
			Notes:      req.Customer.Notes,
		},
		ShippingMethod: req.ShippingMethod,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckoutResult renders the page the gateway returns the customer to.
func (h *Handlers) CheckoutResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome := mux.Vars(r)["outcome"]

	var order *models.Order
	if receipt := strings.TrimSpace(r.URL.Query().Get("receipt")); receipt != "" {
		var err error
		order, err = h.checkout.GetOrderStatus(ctx, receipt)
		if err != nil {
			h.loggerFromContext(ctx).Warn("failed to resolve checkout receipt", "error", err, "outcome", outcome)
		}
	}

	meta := h.storeMeta(r, "Estado del pedido")
	if outcome == "success" {
		h.carts.Clear(w)
		meta.CartCount = 0
	}
	h.render(w, r, http.StatusOK, views.CheckoutResultPage(meta, outcome, order))
}

type orderSummary struct {
	ID             uuid.UUID          `json:"id"`
	Status         models.OrderStatus `json:"status"`
	StatusLabel    string             `json:"statusLabel"`
	Total          decimal.Decimal    `json:"total"`
	PaymentID      string             `json:"paymentId,omitempty"`
	PaymentMethod  string             `json:"paymentMethod,omitempty"`
	PaymentStatus  string             `json:"paymentStatus,omitempty"`
	Items          []orderSummaryItem `json:"items"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

type orderSummaryItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// APIOrderStatus returns the public order summary for a receipt token.
func (h *Handlers) APIOrderStatus(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.GetOrderStatus(r.Context(), r.URL.Query().Get("receipt"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary := orderSummary{
		ID:            order.ID,
		Status:        order.Status,
		StatusLabel:   order.Status.Label(),
		Total:         order.Total,
		PaymentID:     order.PaymentID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Items:         make([]orderSummaryItem, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		summary.Items = append(summary.Items, orderSummaryItem{Title: item.Title, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	if order.Shipping != nil {
		summary.TrackingNumber = order.Shipping.TrackingNumber
	}
	writeJSON(w, http.StatusOK, summary)
}

func linesFromCart(c *cart.Cart) []catalog.Line {
	lines := make([]catalog.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
