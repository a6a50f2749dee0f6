package views

import (
	"github.com/a-h/templ"

	"github.com/kumamontessori/kuma/internal/cart"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/services"
)

type homeData struct {
	Meta
	Featured   []*models.Product
	Categories []*models.Category
}

func HomePage(meta Meta, featured []*models.Product, categories []*models.Category) templ.Component {
	return render(layoutStore, "home", homeData{Meta: meta, Featured: featured, Categories: categories})
}

type productsData struct {
	Meta
	Products   []*models.Product
	Categories []*models.Category
}

func ProductsPage(meta Meta, products []*models.Product, categories []*models.Category) templ.Component {
	return render(layoutStore, "products", productsData{Meta: meta, Products: products, Categories: categories})
}

type productData struct {
	Meta
	Product *models.Product
}

func ProductPage(meta Meta, product *models.Product) templ.Component {
	return render(layoutStore, "product", productData{Meta: meta, Product: product})
}

type categoriesData struct {
	Meta
	Categories []*models.Category
}

func CategoriesPage(meta Meta, categories []*models.Category) templ.Component {
	return render(layoutStore, "categories", categoriesData{Meta: meta, Categories: categories})
}

type categoryData struct {
	Meta
	Category *models.Category
	Products []*models.Product
}

func CategoryPage(meta Meta, category *models.Category, products []*models.Product) templ.Component {
	return render(layoutStore, "category", categoryData{Meta: meta, Category: category, Products: products})
}

type cartData struct {
	Meta
	Cart *cart.Cart
}

func CartPage(meta Meta, c *cart.Cart) templ.Component {
	return render(layoutStore, "cart", cartData{Meta: meta, Cart: c})
}

// CheckoutForm echoes the customer's input back after a failed submit.
type CheckoutForm struct {
	Name           string
	Email          string
	Phone          string
	Address        string
	City           string
	PostalCode     string
	Notes          string
	ShippingMethod string
}

type checkoutData struct {
	Meta
	Cart *cart.Cart
	Form CheckoutForm
}

func CheckoutPage(meta Meta, c *cart.Cart, form CheckoutForm) templ.Component {
	if form.ShippingMethod == "" {
		form.ShippingMethod = services.ShippingMethodOCA
	}
	return render(layoutStore, "checkout", checkoutData{Meta: meta, Cart: c, Form: form})
}

type checkoutResultData struct {
	Meta
	Outcome string
	Order   *models.Order
}

// CheckoutResultPage renders the gateway return page. outcome is success,
// failure or pending; order may be nil when the receipt did not resolve.
func CheckoutResultPage(meta Meta, outcome string, order *models.Order) templ.Component {
	return render(layoutStore, "checkout_result", checkoutResultData{Meta: meta, Outcome: outcome, Order: order})
}

type trackingData struct {
	Meta
	Number   string
	Tracking *services.TrackingInfo
	Demo     []string
}

func TrackingPage(meta Meta, number string, tracking *services.TrackingInfo) templ.Component {
	return render(layoutStore, "tracking", trackingData{
		Meta:     meta,
		Number:   number,
		Tracking: tracking,
		Demo:     services.DemoTrackingNumbers,
	})
}

func ContactPage(meta Meta) templ.Component {
	return render(layoutStore, "contact", meta)
}

func AboutPage(meta Meta) templ.Component {
	return render(layoutStore, "about", meta)
}

func NotFoundPage(meta Meta) templ.Component {
	return render(layoutStore, "not_found", meta)
}

func ErrorPage(meta Meta) templ.Component {
	return render(layoutStore, "error", meta)
}
