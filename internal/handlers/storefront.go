package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/ui/views"
)

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	featured, err := h.catalog.FeaturedProducts(ctx)
	if err != nil {
		logger.Error("failed to load featured products", "error", err)
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		logger.Error("failed to load categories", "error", err)
		categories = h.catalog.FallbackCategories()
	}

	h.render(w, r, http.StatusOK, views.HomePage(h.storeMeta(r, ""), featured, categories))
}

func (h *Handlers) Products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to load categories", "error", err)
	}

	h.render(w, r, http.StatusOK, views.ProductsPage(h.storeMeta(r, "Productos"), products, categories))
}

func (h *Handlers) Product(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.ProductPage(h.storeMeta(r, product.Name), product))
}

func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.CategoriesPage(h.storeMeta(r, "Categorías"), categories))
}

func (h *Handlers) Category(w http.ResponseWriter, r *http.Request) {
	category, products, err := h.catalog.GetCategoryBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.CategoryPage(h.storeMeta(r, category.Name), category, products))
}

// Tracking renders the tracking form and, with ?number=, the shipment history.
func (h *Handlers) Tracking(w http.ResponseWriter, r *http.Request) {
	meta := h.storeMeta(r, "Seguimiento")
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		h.render(w, r, http.StatusOK, views.TrackingPage(meta, "", nil))
		return
	}

	info, err := h.shipping.LookupTracking(r.Context(), number)
	if err != nil {
		status, message := errorStatus(err)
		if errors.Is(err, services.ErrShippingNotFound) {
			message = "No encontramos un envío con ese número"
		}
		if status >= http.StatusInternalServerError {
			h.loggerFromContext(r.Context()).Error("tracking lookup failed", "error", err, "tracking_number", number)
		}
		meta.Error = message
		h.render(w, r, status, views.TrackingPage(meta, number, nil))
		return
	}

	h.render(w, r, http.StatusOK, views.TrackingPage(meta, number, info))
}

func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.ContactPage(h.storeMeta(r, "Contacto")))
}

func (h *Handlers) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.AboutPage(h.storeMeta(r, "Nosotros")))
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	h.render(w, r, http.StatusNotFound, views.NotFoundPage(h.storeMeta(r, "Página no encontrada")))
}
