// Package views renders the storefront and admin pages. Pages are
// html/template files exposed as templ components so handlers render them
// the same way regardless of how a page is built.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/ui/components/admin/dashboard"
)

//go:embed templates
var templateFS embed.FS

const (
	layoutStore = "store"
	layoutAdmin = "admin"
)

var argentina = time.FixedZone("ART", -3*60*60)

var funcs = template.FuncMap{
	"money": money.Format,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(argentina).Format("02/01/2006 15:04")
	},
	"orderBadge":    func(status models.OrderStatus) dashboard.Badge { return dashboard.OrderStatusBadge(status) },
	"shippingBadge": func(status models.ShippingStatus) dashboard.Badge { return dashboard.ShippingStatusBadge(status) },
	// Descriptions are sanitized before they are stored.
	"trustedHTML": func(value string) template.HTML { return template.HTML(value) },
	"lineTotal": func(price decimal.Decimal, quantity int) decimal.Decimal {
		return price.Mul(decimal.NewFromInt(int64(quantity)))
	},
	"orderStatuses": func() []models.OrderStatus { return models.OrderStatuses },
	"shippingStatuses": func() []models.ShippingStatus {
		return []models.ShippingStatus{
			models.ShippingPending, models.ShippingInTransit, models.ShippingDelivered,
			models.ShippingReturned, models.ShippingCancelled,
		}
	},
}

var pages = mustParsePages()

func mustParsePages() map[string]*template.Template {
	out := make(map[string]*template.Template)
	for _, layout := range []string{layoutStore, layoutAdmin} {
		dir := path.Join("templates", layout)
		base := template.Must(template.New(layout).Funcs(funcs).ParseFS(templateFS, path.Join(dir, "layout.html")))

		files, err := fs.Glob(templateFS, path.Join(dir, "*.html"))
		if err != nil {
			panic(err)
		}
		for _, file := range files {
			name := strings.TrimSuffix(path.Base(file), ".html")
			if name == "layout" {
				continue
			}
			page := template.Must(template.Must(base.Clone()).ParseFS(templateFS, file))
			out[layout+"/"+name] = page
		}
	}
	return out
}

// Meta carries what every layout needs.
type Meta struct {
	Title     string
	CartCount int
	Flash     string
	Error     string
	AdminName string
	Path      string
}

func (m Meta) PageTitle() string {
	if m.Title == "" {
		return "Kuma Montessori"
	}
	return m.Title + " | Kuma Montessori"
}

func render(layout, name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		page, ok := pages[layout+"/"+name]
		if !ok {
			return fmt.Errorf("view %s/%s not found", layout, name)
		}
		if err := page.ExecuteTemplate(w, "layout", data); err != nil {
			return fmt.Errorf("failed to render %s/%s: %w", layout, name, err)
		}
		return nil
	})
}
