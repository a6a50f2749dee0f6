package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/ui/views"
)

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.adminService.Dashboard(r.Context())
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.DashboardPage(h.adminMeta(r, "Panel"), dashboard))
}

// renderAdminError logs err and shows the admin error page.
func (h *Handlers) renderAdminError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("admin request failed", "error", err, "path", r.URL.Path)
	}
	meta := h.adminMeta(r, "Error")
	meta.Error = message
	h.render(w, r, status, views.AdminErrorPage(meta))
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

// Products

func (h *Handlers) AdminProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminProductsPage(h.adminMeta(r, "Productos"), products))
}

func (h *Handlers) AdminProductNew(w http.ResponseWriter, r *http.Request) {
	h.renderProductForm(w, r, http.StatusOK, views.ProductForm{Stock: "0"}, "")
}

func (h *Handlers) AdminProductEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrProductNotFound)
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.renderProductForm(w, r, http.StatusOK, productFormFromModel(product), "")
}

func (h *Handlers) AdminProductCreate(w http.ResponseWriter, r *http.Request) {
	form := productFormFromRequest(r)
	input, err := productInputFromForm(form)
	if err == nil {
		_, err = h.catalog.CreateProduct(r.Context(), input)
	}
	if err != nil {
		h.productFormFailed(w, r, form, err)
		return
	}
	redirectWithToast(w, r, "/admin/products", "saved")
}

func (h *Handlers) AdminProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrProductNotFound)
		return
	}

	form := productFormFromRequest(r)
	form.ID = id
	input, err := productInputFromForm(form)
	if err == nil {
		_, err = h.catalog.UpdateProduct(r.Context(), id, input)
	}
	if err != nil {
		h.productFormFailed(w, r, form, err)
		return
	}
	redirectWithToast(w, r, "/admin/products", "saved")
}

func (h *Handlers) AdminProductDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrProductNotFound)
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/admin/products", "deleted")
}

func (h *Handlers) AdminProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrProductNotFound)
		return
	}
	if _, err := h.uploadImage(w, r, id); err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/admin/products/"+id.String(), "image_uploaded")
}

func (h *Handlers) productFormFailed(w http.ResponseWriter, r *http.Request, form views.ProductForm, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("failed to save product", "error", err)
	}
	h.renderProductForm(w, r, status, form, message)
}

func (h *Handlers) renderProductForm(w http.ResponseWriter, r *http.Request, status int, form views.ProductForm, message string) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	title := "Nuevo producto"
	if !form.IsNew() {
		title = "Editar producto"
	}
	meta := h.adminMeta(r, title)
	meta.Error = message
	h.render(w, r, status, views.ProductFormPage(meta, form, storedCategories(categories)))
}

// storedCategories drops the seed fallbacks, which have no ID to reference.
func storedCategories(categories []*models.Category) []*models.Category {
	stored := make([]*models.Category, 0, len(categories))
	for _, c := range categories {
		if c.ID != uuid.Nil {
			stored = append(stored, c)
		}
	}
	return stored
}

func productFormFromRequest(r *http.Request) views.ProductForm {
	form := views.ProductForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Slug:        strings.TrimSpace(r.PostFormValue("slug")),
		Description: r.PostFormValue("description"),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
		Stock:       strings.TrimSpace(r.PostFormValue("stock")),
		SKU:         strings.TrimSpace(r.PostFormValue("sku")),
		ImageURL:    strings.TrimSpace(r.PostFormValue("image_url")),
		Featured:    r.PostFormValue("featured") == "true",
	}
	if id, err := uuid.Parse(strings.TrimSpace(r.PostFormValue("category_id"))); err == nil {
		form.CategoryID = id
	}
	return form
}

func productFormFromModel(p *models.Product) views.ProductForm {
	return views.ProductForm{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       strconv.Itoa(p.Stock),
		SKU:         p.SKU,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		Featured:    p.Featured,
	}
}

func productInputFromForm(form views.ProductForm) (services.ProductInput, error) {
	price, err := money.Parse(form.Price)
	if err != nil {
		return services.ProductInput{}, &services.UserError{Message: "El precio no es válido", Err: err}
	}
	stock := 0
	if form.Stock != "" {
		stock, err = strconv.Atoi(form.Stock)
		if err != nil {
			return services.ProductInput{}, &services.UserError{Message: "El stock debe ser un número entero", Err: err}
		}
	}
	return services.ProductInput{
		Name:        form.Name,
		Slug:        form.Slug,
		Description: form.Description,
		Price:       price,
		SKU:         form.SKU,
		Stock:       stock,
		ImageURL:    form.ImageURL,
		CategoryID:  form.CategoryID,
		Featured:    form.Featured,
	}, nil
}

// Categories

func (h *Handlers) AdminCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminCategoriesPage(h.adminMeta(r, "Categorías"), storedCategories(categories)))
}

func (h *Handlers) AdminCategoryNew(w http.ResponseWriter, r *http.Request) {
	h.renderCategoryForm(w, r, http.StatusOK, views.CategoryForm{}, "")
}

func (h *Handlers) AdminCategoryEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrCategoryNotFound)
		return
	}
	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.renderCategoryForm(w, r, http.StatusOK, views.CategoryForm{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ImageURL:    category.ImageURL,
	}, "")
}

func (h *Handlers) AdminCategoryCreate(w http.ResponseWriter, r *http.Request) {
	form := categoryFormFromRequest(r)
	if _, err := h.catalog.CreateCategory(r.Context(), categoryInputFromForm(form)); err != nil {
		h.categoryFormFailed(w, r, form, err)
		return
	}
	redirectWithToast(w, r, "/admin/categories", "saved")
}

func (h *Handlers) AdminCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrCategoryNotFound)
		return
	}
	form := categoryFormFromRequest(r)
	form.ID = id
	if _, err := h.catalog.UpdateCategory(r.Context(), id, categoryInputFromForm(form)); err != nil {
		h.categoryFormFailed(w, r, form, err)
		return
	}
	redirectWithToast(w, r, "/admin/categories", "saved")
}

func (h *Handlers) AdminCategoryDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrCategoryNotFound)
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/admin/categories", "deleted")
}

func (h *Handlers) categoryFormFailed(w http.ResponseWriter, r *http.Request, form views.CategoryForm, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("failed to save category", "error", err)
	}
	h.renderCategoryForm(w, r, status, form, message)
}

func (h *Handlers) renderCategoryForm(w http.ResponseWriter, r *http.Request, status int, form views.CategoryForm, message string) {
	title := "Nueva categoría"
	if !form.IsNew() {
		title = "Editar categoría"
	}
	meta := h.adminMeta(r, title)
	meta.Error = message
	h.render(w, r, status, views.CategoryFormPage(meta, form))
}

func categoryFormFromRequest(r *http.Request) views.CategoryForm {
	return views.CategoryForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Slug:        strings.TrimSpace(r.PostFormValue("slug")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		ImageURL:    strings.TrimSpace(r.PostFormValue("image_url")),
	}
}

func categoryInputFromForm(form views.CategoryForm) services.CategoryInput {
	return services.CategoryInput{
		Name:        form.Name,
		Slug:        form.Slug,
		Description: form.Description,
		ImageURL:    form.ImageURL,
	}
}

// Orders

func (h *Handlers) AdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.adminService.ListOrders(r.Context())
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminOrdersPage(h.adminMeta(r, "Pedidos"), orders))
}

func (h *Handlers) AdminOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrOrderNotFound)
		return
	}
	order, err := h.adminService.GetOrder(r.Context(), id)
	if err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminOrderPage(h.adminMeta(r, "Pedido #"+order.ShortID()), order))
}

func (h *Handlers) AdminOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrOrderNotFound)
		return
	}
	if err := h.adminService.UpdateOrderStatus(r.Context(), id, r.PostFormValue("status")); err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/admin/orders/"+id.String(), "status_updated")
}

func (h *Handlers) AdminOrderLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderAdminError(w, r, services.ErrOrderNotFound)
		return
	}
	if _, err := h.shipping.GenerateLabel(r.Context(), id); err != nil {
		h.renderAdminError(w, r, err)
		return
	}
	redirectWithToast(w, r, "/admin/orders/"+id.String(), "label_generated")
}
