package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
)

const SiteName = "Kuma Montessori"

type Template string

const (
	OrderConfirmation Template = "order_confirmation"
	OrderShipped      Template = "order_shipped"
	OrderDelivered    Template = "order_delivered"
)

var subjects = map[Template]string{
	OrderConfirmation: "Confirmamos tu pedido #%s - " + SiteName,
	OrderShipped:      "Tu pedido #%s está en camino - " + SiteName,
	OrderDelivered:    "Tu pedido #%s fue entregado - " + SiteName,
}

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func formatDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), months[t.Month()-1], t.Year())
}

// OrderInfo is the data every order template renders.
type OrderInfo struct {
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	OrderDate       string
	Items           []OrderItem
	Subtotal        string
	Shipping        string
	Total           string
	ShippingAddress string
	TrackingNumber  string
	TrackingCarrier string
	TrackingURL     string
	OrderURL        string
	SiteURL         string
	SiteName        string
}

type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

// NewOrderInfo flattens an order for rendering. orderURL is the signed
// receipt link and may be empty.
func NewOrderInfo(order *models.Order, siteURL, orderURL string) *OrderInfo {
	info := &OrderInfo{
		OrderNumber:   strings.ToUpper(order.ShortID()),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		OrderDate:     formatDate(order.CreatedAt),
		Subtotal:      money.Format(order.Subtotal()),
		Shipping:      money.Format(order.Total.Sub(order.Subtotal())),
		Total:         money.Format(order.Total),
		OrderURL:      orderURL,
		SiteURL:       siteURL,
		SiteName:      SiteName,
	}

	address := []string{order.ShippingAddress}
	if order.ShippingCity != "" {
		address = append(address, order.ShippingCity)
	}
	if order.ShippingPostalCode != "" {
		address = append(address, "CP "+order.ShippingPostalCode)
	}
	info.ShippingAddress = strings.Join(address, ", ")

	for _, item := range order.Items {
		info.Items = append(info.Items, OrderItem{
			Name:      item.Title,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPrice),
			Total:     money.Format(item.LineTotal()),
		})
	}

	if order.Shipping != nil && order.Shipping.TrackingNumber != "" {
		info.TrackingNumber = order.Shipping.TrackingNumber
		info.TrackingCarrier = order.Shipping.Provider
		info.TrackingURL = siteURL + "/seguimiento?number=" + order.Shipping.TrackingNumber
	}
	return info
}

type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.New("email").Parse(layoutHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}
	text := texttemplate.New("email")

	sources := map[Template][2]string{
		OrderConfirmation: {orderConfirmationHTML, orderConfirmationText},
		OrderShipped:      {orderShippedHTML, orderShippedText},
		OrderDelivered:    {orderDeliveredHTML, orderDeliveredText},
	}
	for name, source := range sources {
		if _, err := html.New(string(name)).Parse(source[0]); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", name, err)
		}
		if _, err := text.New(string(name)).Parse(source[1] + footerText); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
		}
	}
	return &Renderer{html: html, text: text}, nil
}

func (r *Renderer) Render(name Template, data *OrderInfo) (*Email, error) {
	subject, ok := subjects[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.ExecuteTemplate(&htmlBuf, string(name), data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template %s: %w", name, err)
	}
	if err := r.text.ExecuteTemplate(&textBuf, string(name), data); err != nil {
		return nil, fmt.Errorf("failed to render text template %s: %w", name, err)
	}

	return &Email{
		To:        data.CustomerEmail,
		Subject:   fmt.Sprintf(subject, data.OrderNumber),
		Text:      textBuf.String(),
		HTML:      htmlBuf.String(),
		Tag:       string(name),
		Reference: data.OrderNumber,
	}, nil
}

const layoutHTML = `{{define "header"}}<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.SiteName}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #3f3a36; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #b5835a; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #fbf8f4; padding: 20px; border: 1px solid #eadfd3; }
    .box { background: white; padding: 15px; border-radius: 6px; margin: 15px 0; }
    .items { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items th { text-align: left; padding: 8px; background: #f3ece4; }
    .items td { padding: 8px; border-bottom: 1px solid #eadfd3; }
    .total { font-weight: bold; text-align: right; }
    .button { display: inline-block; background: #b5835a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; }
    .footer { text-align: center; padding: 20px; color: #8a7f75; font-size: 14px; }
  </style>
</head>
<body>{{end}}
{{define "footer"}}
  <div class="footer">
    <p>Gracias por elegir <a href="{{.SiteURL}}">{{.SiteName}}</a></p>
  </div>
</body>
</html>{{end}}
`

const footerText = `
Gracias por elegir {{.SiteName}}
{{.SiteURL}}
`

const orderConfirmationText = `¡Gracias por tu compra, {{.CustomerName}}!

Recibimos el pago de tu pedido #{{.OrderNumber}} del {{.OrderDate}}.

Productos:
{{range .Items}}- {{.Name}} x{{.Quantity}}: {{.Total}}
{{end}}
Subtotal: {{.Subtotal}}
Envío: {{.Shipping}}
Total: {{.Total}}

Dirección de envío: {{.ShippingAddress}}
{{if .OrderURL}}
Podés ver tu pedido en {{.OrderURL}}
{{end}}
Te avisaremos cuando lo despachemos.
`

const orderConfirmationHTML = `{{template "header" .}}
  <div class="header">
    <h1>¡Pedido confirmado!</h1>
    <p>Gracias por tu compra, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <div class="box">
      <strong>Pedido:</strong> #{{.OrderNumber}}<br>
      <strong>Fecha:</strong> {{.OrderDate}}
    </div>
    <table class="items">
      <thead><tr><th>Producto</th><th>Cant.</th><th>Importe</th></tr></thead>
      <tbody>
        {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Total}}</td></tr>
        {{end}}
      </tbody>
    </table>
    <p class="total">Subtotal: {{.Subtotal}}<br>Envío: {{.Shipping}}<br>Total: {{.Total}}</p>
    <div class="box"><strong>Dirección de envío:</strong><br>{{.ShippingAddress}}</div>
    {{if .OrderURL}}<p><a class="button" href="{{.OrderURL}}">Ver mi pedido</a></p>{{end}}
    <p>Te avisaremos cuando lo despachemos.</p>
  </div>
{{template "footer" .}}`

const orderShippedText = `¡Buenas noticias, {{.CustomerName}}!

Tu pedido #{{.OrderNumber}} ya está en camino.
{{if .TrackingNumber}}
Transporte: {{.TrackingCarrier}}
Número de seguimiento: {{.TrackingNumber}}
Seguí tu envío en {{.TrackingURL}}
{{end}}
Dirección de envío: {{.ShippingAddress}}
`

const orderShippedHTML = `{{template "header" .}}
  <div class="header">
    <h1>Tu pedido está en camino</h1>
    <p>¡Buenas noticias, {{.CustomerName}}!</p>
  </div>
  <div class="content">
    <p><strong>Pedido:</strong> #{{.OrderNumber}}</p>
    {{if .TrackingNumber}}
    <div class="box">
      <p><strong>Transporte:</strong> {{.TrackingCarrier}}</p>
      <p><strong>Número de seguimiento:</strong> {{.TrackingNumber}}</p>
      <a class="button" href="{{.TrackingURL}}">Seguir mi envío</a>
    </div>
    {{end}}
    <div class="box"><strong>Dirección de envío:</strong><br>{{.ShippingAddress}}</div>
  </div>
{{template "footer" .}}`

const orderDeliveredText = `¡Hola {{.CustomerName}}!

Tu pedido #{{.OrderNumber}} fue entregado en {{.ShippingAddress}}.

Esperamos que lo disfruten. Si tenés alguna consulta, respondé este correo.
`

const orderDeliveredHTML = `{{template "header" .}}
  <div class="header">
    <h1>Tu pedido fue entregado</h1>
    <p>¡Hola {{.CustomerName}}!</p>
  </div>
  <div class="content">
    <p><strong>Pedido:</strong> #{{.OrderNumber}}</p>
    <div class="box"><strong>Entregado en:</strong><br>{{.ShippingAddress}}</div>
    <p>Esperamos que lo disfruten. Si tenés alguna consulta, respondé este correo.</p>
  </div>
{{template "footer" .}}`
