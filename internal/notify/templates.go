package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

type templateData struct {
	ShopName string
	Order    *order.Order
}

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return pricing.Display(d) },
	"lineTotal": func(it order.Item) string {
		return pricing.Display(it.Total())
	},
	"address": func(a order.Address) string {
		parts := []string{a.Line1, a.Line2, strings.TrimSpace(a.City + " " + a.State), a.PostalCode, a.Country}
		out := parts[:0]
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				out = append(out, p)
			}
		}
		return strings.Join(out, ", ")
	},
}

const customerHTML = `<h1>Thank you for your order, {{.Order.Customer.Name}}!</h1>
<p>Your order number is <strong>{{.Order.Number}}</strong>.</p>
<table>
<tr><th>Item</th><th>Variant</th><th>Qty</th><th>Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td>{{.VariantLabel}}</td><td>{{.Quantity}}</td><td>{{lineTotal .}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Order.Subtotal}}<br>Shipping: {{money .Order.ShippingAmount}}<br><strong>Total: {{money .Order.Total}}</strong></p>
{{with address .Order.Shipping}}<p>Shipping to: {{.}}</p>{{end}}
{{with .Order.Notes}}<p>Notes: {{.}}</p>{{end}}
<p>{{.ShopName}}</p>
`

const customerText = `Thank you for your order, {{.Order.Customer.Name}}!

Order number: {{.Order.Number}}

{{range .Order.Items}}- {{.Name}} ({{.VariantLabel}}) x{{.Quantity}}: {{lineTotal .}}
{{end}}
Subtotal: {{money .Order.Subtotal}}
Shipping: {{money .Order.ShippingAmount}}
Total: {{money .Order.Total}}
{{with address .Order.Shipping}}
Shipping to: {{.}}
{{end}}{{with .Order.Notes}}
Notes: {{.}}
{{end}}
{{.ShopName}}
`

const ownerHTML = `<h1>New order {{.Order.Number}}</h1>
<p>Customer: {{.Order.Customer.Name}} &lt;{{.Order.Customer.Email}}&gt;{{with .Order.Customer.Phone}}, {{.}}{{end}}</p>
<table>
<tr><th>Item</th><th>Variant</th><th>Qty</th><th>Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td>{{.VariantLabel}}</td><td>{{.Quantity}}</td><td>{{lineTotal .}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Order.Subtotal}}<br>Shipping: {{money .Order.ShippingAmount}}<br><strong>Total: {{money .Order.Total}}</strong></p>
{{with address .Order.Shipping}}<p>Ship to: {{.}}</p>{{end}}
{{with .Order.Notes}}<p>Customer notes: {{.}}</p>{{end}}
<p>Payment session: {{.Order.PaymentSessionID}}</p>
`

const ownerText = `New order {{.Order.Number}} on {{.ShopName}}

Customer: {{.Order.Customer.Name}} <{{.Order.Customer.Email}}>{{with .Order.Customer.Phone}}, {{.}}{{end}}

{{range .Order.Items}}- {{.Name}} ({{.VariantLabel}}) x{{.Quantity}}: {{lineTotal .}}
{{end}}
Subtotal: {{money .Order.Subtotal}}
Shipping: {{money .Order.ShippingAmount}}
Total: {{money .Order.Total}}
{{with address .Order.Shipping}}
Ship to: {{.}}
{{end}}{{with .Order.Notes}}
Customer notes: {{.}}
{{end}}
Payment session: {{.Order.PaymentSessionID}}
`

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var (
	customerTemplates = pair{
		html: htmltemplate.Must(htmltemplate.New("customer.html").Funcs(funcs).Parse(customerHTML)),
		text: texttemplate.Must(texttemplate.New("customer.txt").Funcs(funcs).Parse(customerText)),
	}
	ownerTemplates = pair{
		html: htmltemplate.Must(htmltemplate.New("owner.html").Funcs(funcs).Parse(ownerHTML)),
		text: texttemplate.Must(texttemplate.New("owner.txt").Funcs(funcs).Parse(ownerText)),
	}
)

func (p pair) render(data templateData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := p.html.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err := p.text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
