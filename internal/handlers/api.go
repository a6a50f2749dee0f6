package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/internal/storage"
)

// multipartOverhead leaves room for the form fields around the image.
const multipartOverhead = 1 << 20

func (h *Handlers) APIProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		products any
		err      error
	)
	if r.URL.Query().Get("featured") == "true" {
		products, err = h.catalog.FeaturedProducts(ctx)
	} else {
		products, err = h.catalog.ListProducts(ctx)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handlers) APIProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) APICategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handlers) MercadoPagoPublicKey(w http.ResponseWriter, r *http.Request) {
	key := ""
	if h.config != nil {
		key = strings.TrimSpace(h.config.MercadoPagoPublicKey)
	}
	if key == "" {
		h.loggerFromContext(r.Context()).Error("mercadopago public key is not configured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Public key not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

// APIUploadProductImage stores the multipart "image" field as the product's
// primary image and returns its URL.
func (h *Handlers) APIUploadProductImage(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, services.ErrProductNotFound)
		return
	}

	url, err := h.uploadImage(w, r, productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handlers) uploadImage(w http.ResponseWriter, r *http.Request, productID uuid.UUID) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(storage.MaxImageSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", &services.UserError{Message: storage.ErrImageTooLarge.Error(), Err: err}
		}
		return "", &services.UserError{Message: "Formulario inválido", Err: err}
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		return "", &services.UserError{Message: storage.ErrMissingImage.Error(), Err: err}
	}
	defer file.Close()

	return h.catalog.UploadProductImage(r.Context(), productID, file, header.Filename)
}
