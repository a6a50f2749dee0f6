package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/ui/views"
)

func TestProductInputFromForm(t *testing.T) {
	t.Parallel()

	categoryID := uuid.New()
	tests := []struct {
		name      string
		form      views.ProductForm
		wantPrice decimal.Decimal
		wantStock int
		wantErr   bool
	}{
		{
			name:      "valid",
			form:      views.ProductForm{Name: "Torre rosa", Price: "45000.50", Stock: "3", CategoryID: categoryID},
			wantPrice: decimal.RequireFromString("45000.50"),
			wantStock: 3,
		},
		{
			name:      "empty stock is zero",
			form:      views.ProductForm{Name: "Torre rosa", Price: "100", CategoryID: categoryID},
			wantPrice: decimal.NewFromInt(100),
		},
		{name: "missing price", form: views.ProductForm{Name: "Torre rosa"}, wantErr: true},
		{name: "bad price", form: views.ProductForm{Name: "Torre rosa", Price: "mucho"}, wantErr: true},
		{name: "bad stock", form: views.ProductForm{Name: "Torre rosa", Price: "100", Stock: "tres"}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			input, err := productInputFromForm(tc.form)
			if tc.wantErr {
				var userErr *services.UserError
				if !errors.As(err, &userErr) {
					t.Fatalf("expected a user error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !input.Price.Equal(tc.wantPrice) {
				t.Fatalf("unexpected price: got=%s want=%s", input.Price, tc.wantPrice)
			}
			if input.Stock != tc.wantStock {
				t.Fatalf("unexpected stock: got=%d want=%d", input.Stock, tc.wantStock)
			}
			if input.CategoryID != tc.form.CategoryID {
				t.Fatalf("unexpected category: got=%s", input.CategoryID)
			}
		})
	}
}

func TestProductFormFromRequest(t *testing.T) {
	t.Parallel()

	categoryID := uuid.New()
	req := postForm("/admin/products", url.Values{
		"name":        {"  Torre rosa "},
		"price":       {"45000"},
		"category_id": {categoryID.String()},
		"featured":    {"true"},
	})

	form := productFormFromRequest(req)
	if form.Name != "Torre rosa" || form.CategoryID != categoryID || !form.Featured {
		t.Fatalf("unexpected form: %+v", form)
	}
	if !form.IsNew() {
		t.Fatalf("a posted form without an id is new")
	}
}

func TestAdminOrderHandlers_RejectBadID(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	handlers := map[string]http.HandlerFunc{
		"order":  h.AdminOrder,
		"status": h.AdminOrderStatus,
		"label":  h.AdminOrderLabel,
	}

	for name, handler := range handlers {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/admin/orders/nope", nil), map[string]string{"id": "nope"})
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: unexpected status: got=%d want=%d", name, rec.Code, http.StatusNotFound)
		}
	}
}

func TestAdminDashboard_Unavailable(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.AdminDashboard(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}
