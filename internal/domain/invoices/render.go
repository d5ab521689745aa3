package invoices

import (
	"bytes"
	"html"
	"html/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"rand": FormatRand,
	"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Number}}</title></head>
<body style="font-family:Arial,sans-serif;color:#222;max-width:640px;margin:0 auto">
  <h1 style="margin-bottom:0">Tax Invoice</h1>
  <p style="margin-top:4px">{{.Number}} &middot; {{date .IssuedAt}}</p>

  <table width="100%" style="margin:24px 0">
    <tr>
      <td valign="top">
        <strong>{{.Shop.Name}}</strong><br>
        {{with .Shop.Address}}{{.}}<br>{{end}}
        {{with .Shop.Phone}}{{.}}<br>{{end}}
        {{with .Shop.Email}}{{.}}<br>{{end}}
        {{with .Shop.VATNumber}}VAT No: {{.}}{{end}}
      </td>
      <td valign="top" align="right">
        <strong>Billed to</strong><br>
        {{with .Customer.Name}}{{.}}<br>{{end}}
        {{with .Customer.Email}}{{.}}<br>{{end}}
        {{with .Customer.Phone}}{{.}}{{end}}
      </td>
    </tr>
  </table>

  <table width="100%" cellpadding="6" style="border-collapse:collapse">
    <thead>
      <tr style="background:#f2f2f2"><th align="left">Item</th><th align="right">Qty</th><th align="right">Amount</th></tr>
    </thead>
    <tbody>
    {{range .Items}}
      <tr style="border-bottom:1px solid #eee">
        <td>{{.Description}}{{with .Detail}}<br><small>{{.}}</small>{{end}}</td>
        <td align="right">{{.Quantity}}</td>
        <td align="right">{{rand .AmountCents}}</td>
      </tr>
    {{end}}
    </tbody>
    <tfoot>
      <tr><td colspan="2" align="right">Subtotal</td><td align="right">{{rand .SubtotalCents}}</td></tr>
      <tr><td colspan="2" align="right">VAT (15%)</td><td align="right">{{rand .VATCents}}</td></tr>
      <tr><td colspan="2" align="right"><strong>Total</strong></td><td align="right"><strong>{{rand .TotalCents}}</strong></td></tr>
    </tfoot>
  </table>

  <p style="margin-top:24px;font-size:12px;color:#666">
    Order {{.OrderID}}{{with .Reference}} &middot; Payment reference {{.}}{{end}}{{with .PaidAt}} &middot; Paid {{date .}}{{end}}
  </p>
</body>
</html>
`))

var strict = bluemonday.StrictPolicy()

// Render produces the HTML body for an invoice email. Free-text fields are
// stripped of markup before the template escapes them.
func Render(inv Invoice) (string, error) {
	clean := inv
	clean.Shop = cleanParty(inv.Shop)
	clean.Customer = cleanParty(inv.Customer)
	clean.Items = make([]LineItem, len(inv.Items))
	for i, it := range inv.Items {
		it.Description = plain(it.Description)
		it.Detail = plain(it.Detail)
		clean.Items[i] = it
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, clean); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func Subject(inv Invoice) string {
	return "Invoice " + inv.Number + " from " + plain(inv.Shop.Name)
}

func cleanParty(p Party) Party {
	return Party{
		Name:      plain(p.Name),
		Email:     plain(p.Email),
		Phone:     plain(p.Phone),
		Address:   plain(p.Address),
		VATNumber: plain(p.VATNumber),
	}
}

// plain strips tags; the template does the escaping, so entities are undone.
func plain(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}
