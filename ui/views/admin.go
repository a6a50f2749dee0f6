package views

import (
	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/services"
)

type loginData struct {
	Meta
	Email string
}

func LoginPage(meta Meta, email string) templ.Component {
	return render(layoutAdmin, "login", loginData{Meta: meta, Email: email})
}

type SetupForm struct {
	Name  string
	Email string
}

type setupData struct {
	Meta
	Form SetupForm
}

func SetupPage(meta Meta, form SetupForm) templ.Component {
	return render(layoutAdmin, "setup", setupData{Meta: meta, Form: form})
}

type dashboardData struct {
	Meta
	Dashboard *services.Dashboard
}

func DashboardPage(meta Meta, d *services.Dashboard) templ.Component {
	return render(layoutAdmin, "dashboard", dashboardData{Meta: meta, Dashboard: d})
}

type adminProductsData struct {
	Meta
	Products []*models.Product
}

func AdminProductsPage(meta Meta, products []*models.Product) templ.Component {
	return render(layoutAdmin, "products", adminProductsData{Meta: meta, Products: products})
}

// ProductForm holds the raw form values so invalid input can be shown again.
type ProductForm struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
	Price       string
	Stock       string
	SKU         string
	ImageURL    string
	CategoryID  uuid.UUID
	Featured    bool
}

func (f ProductForm) IsNew() bool {
	return f.ID == uuid.Nil
}

func (f ProductForm) Action() string {
	if f.IsNew() {
		return "/admin/products"
	}
	return "/admin/products/" + f.ID.String()
}

type productFormData struct {
	Meta
	Form       ProductForm
	Categories []*models.Category
}

func ProductFormPage(meta Meta, form ProductForm, categories []*models.Category) templ.Component {
	return render(layoutAdmin, "product_form", productFormData{Meta: meta, Form: form, Categories: categories})
}

type adminCategoriesData struct {
	Meta
	Categories []*models.Category
}

func AdminCategoriesPage(meta Meta, categories []*models.Category) templ.Component {
	return render(layoutAdmin, "categories", adminCategoriesData{Meta: meta, Categories: categories})
}

type CategoryForm struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
	ImageURL    string
}

func (f CategoryForm) IsNew() bool {
	return f.ID == uuid.Nil
}

func (f CategoryForm) Action() string {
	if f.IsNew() {
		return "/admin/categories"
	}
	return "/admin/categories/" + f.ID.String()
}

type categoryFormData struct {
	Meta
	Form CategoryForm
}

func CategoryFormPage(meta Meta, form CategoryForm) templ.Component {
	return render(layoutAdmin, "category_form", categoryFormData{Meta: meta, Form: form})
}

type adminOrdersData struct {
	Meta
	Orders []*models.Order
}

func AdminOrdersPage(meta Meta, orders []*models.Order) templ.Component {
	return render(layoutAdmin, "orders", adminOrdersData{Meta: meta, Orders: orders})
}

type adminOrderData struct {
	Meta
	Order *models.Order
}

func AdminOrderPage(meta Meta, order *models.Order) templ.Component {
	return render(layoutAdmin, "order", adminOrderData{Meta: meta, Order: order})
}

// AdminErrorPage shows meta.Error inside the admin layout.
func AdminErrorPage(meta Meta) templ.Component {
	return render(layoutAdmin, "error", meta)
}
