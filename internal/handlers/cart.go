package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kumamontessori/kuma/internal/cart"
	"github.com/kumamontessori/kuma/ui/views"
)

const maxLineQuantity = 99

func (h *Handlers) CartPage(w http.ResponseWriter, r *http.Request) {
	c := h.carts.Load(r)
	meta := h.storeMeta(r, "Carrito")
	if r.URL.Query().Get("toast") == "cart_full" {
		meta.Flash, meta.Error = "", toasts["cart_full"]
	}
	h.render(w, r, http.StatusOK, views.CartPage(meta, c))
}

// CartAdd copies the product's current name and price into the cart. The
// price is informative only: checkout prices against the catalog again.
func (h *Handlers) CartAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, quantity, ok := cartLineFromForm(r)
	if !ok {
		redirectWithToast(w, r, "/carrito", "invalid_quantity")
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil || !product.InStock() {
		if err != nil {
			h.loggerFromContext(ctx).Warn("cart add for unavailable product", "product_id", productID, "error", err)
		}
		redirectWithToast(w, r, "/carrito", "product_missing")
		return
	}

	c := h.carts.Load(r)
	c.AddItem(cart.Item{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Price:     product.Price,
		Quantity:  quantity,
		ImageURL:  product.PrimaryImage(),
	})
	capQuantity(c, product.ID, product.Stock)

	h.saveCart(w, r, c, "added")
}

func (h *Handlers) CartUpdate(w http.ResponseWriter, r *http.Request) {
	productID, quantity, ok := cartLineFromForm(r)
	if !ok {
		redirectWithToast(w, r, "/carrito", "invalid_quantity")
		return
	}

	c := h.carts.Load(r)
	c.UpdateQuantity(productID, quantity)
	h.saveCart(w, r, c, "cart_updated")
}

func (h *Handlers) CartRemove(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(strings.TrimSpace(r.PostFormValue("product_id")))
	if err != nil {
		redirectWithToast(w, r, "/carrito", "product_missing")
		return
	}

	c := h.carts.Load(r)
	c.RemoveItem(productID)
	h.saveCart(w, r, c, "cart_updated")
}

func (h *Handlers) CartClear(w http.ResponseWriter, r *http.Request) {
	h.carts.Clear(w)
	redirectWithToast(w, r, "/carrito", "cart_cleared")
}

func (h *Handlers) saveCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, toast string) {
	if err := h.carts.Save(w, c); err != nil {
		if errors.Is(err, cart.ErrCartTooLarge) {
			redirectWithToast(w, r, "/carrito", "cart_full")
			return
		}
		h.loggerFromContext(r.Context()).Error("failed to save cart", "error", err)
		h.renderError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/carrito", toast)
}

// cartLineFromForm reads product_id and quantity. A missing quantity means 1;
// zero is allowed so the update form can remove a line.
func cartLineFromForm(r *http.Request) (uuid.UUID, int, bool) {
	productID, err := uuid.Parse(strings.TrimSpace(r.PostFormValue("product_id")))
	if err != nil {
		return uuid.Nil, 0, false
	}

	quantity := 1
	if raw := strings.TrimSpace(r.PostFormValue("quantity")); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil || quantity < 0 || quantity > maxLineQuantity {
			return uuid.Nil, 0, false
		}
	}
	return productID, quantity, true
}

func capQuantity(c *cart.Cart, productID uuid.UUID, stock int) {
	for _, item := range c.Items {
		if item.ProductID == productID && item.Quantity > stock {
			c.UpdateQuantity(productID, stock)
			return
		}
	}
}
