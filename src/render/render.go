// Package render produces the HTML fragments the assistant replies with:
// product card grids, clarification prompts, cart summaries and action clips.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/hembot/hembot/src/catalog"
)

// TaxRate is the flat sales tax applied to cart totals.
const TaxRate = 0.08

// maxCards caps how many product cards one reply renders.
const maxCards = 6

// Line is the name+price view of a cart item used by summaries and the
// remove selector.
type Line struct {
	Name  string
	Price string
}

var productGridTmpl = template.Must(template.New("grid").Parse(`{{if .Intro}}<p>{{.Intro}}</p>
{{end}}<div class="product-grid">
{{range .Products}}<div class="product-card">
{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{template "image" .}}</a>{{else}}{{template "image" .}}{{end}}
<div class="product-info">
<div class="product-name">{{.Name}}</div>
<div class="product-price">{{.PriceDisplay}}</div>
<div class="product-description">{{.Description}}</div>
</div>
</div>
{{end}}</div>
{{define "image"}}{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Name}}" class="product-image">{{else}}<div class="product-image placeholder"></div>{{end}}{{end}}`))

type cardView struct {
	Name         string
	PriceDisplay string
	Description  string
	ImageURL     string
	URL          string
}

func toCardView(p catalog.ProductRecord) cardView {
	desc := p.Description
	if len(desc) > 150 {
		desc = desc[:150] + "..."
	}
	desc = strings.TrimSpace(strings.ReplaceAll(desc, p.Name, ""))

	priceDisplay := "Price unavailable"
	if p.Price != "" {
		priceDisplay = "$" + p.Price
	}
	return cardView{
		Name:         p.Name,
		PriceDisplay: priceDisplay,
		Description:  desc,
		ImageURL:     p.ImageURL,
		URL:          p.URL,
	}
}

// ProductGrid renders up to six products as cards with an optional intro
// line.
func ProductGrid(products []catalog.ProductRecord, intro string) string {
	if len(products) == 0 {
		return intro
	}
	shown := products
	if len(shown) > maxCards {
		shown = shown[:maxCards]
	}
	views := make([]cardView, 0, len(shown))
	for _, p := range shown {
		views = append(views, toCardView(p))
	}
	var b strings.Builder
	if err := productGridTmpl.Execute(&b, struct {
		Intro    string
		Products []cardView
	}{intro, views}); err != nil {
		return template.HTMLEscapeString(intro)
	}
	if len(products) > maxCards {
		fmt.Fprintf(&b, "<p><em>Showing %d of %d products found. Would you like to see more or refine your search?</em></p>", maxCards, len(products))
	}
	return b.String()
}

// Cards renders a compact card block without intro, used to attach product
// references to a follow-up answer.
func Cards(products []catalog.ProductRecord) string {
	return "<div class=\"product-refs\">" + ProductGrid(products, "") + "</div>"
}

// ProductList renders a numbered name+price list, used in match
// clarification replies.
func ProductList(lines []Line) string {
	var b strings.Builder
	b.WriteString("<ul class=\"product-list\">\n")
	for i, l := range lines {
		fmt.Fprintf(&b, "<li>%d. %s - $%s</li>\n", i+1,
			template.HTMLEscapeString(l.Name), template.HTMLEscapeString(l.Price))
	}
	b.WriteString("</ul>")
	return b.String()
}

// Totals computes subtotal, tax and total over cart lines. Unparseable
// prices are skipped.
func Totals(lines []Line) (subtotal, tax, total float64) {
	for _, l := range lines {
		if v, ok := catalog.ParsePrice(l.Price); ok {
			subtotal += v
		}
	}
	tax = subtotal * TaxRate
	return subtotal, tax, subtotal + tax
}

// CartSummary renders the cart contents with subtotal, tax and total.
func CartSummary(lines []Line) string {
	if len(lines) == 0 {
		return "<p>Your shopping cart is empty.</p>"
	}
	var b strings.Builder
	plural := ""
	if len(lines) != 1 {
		plural = "s"
	}
	fmt.Fprintf(&b, "<p><strong>Your cart contains %d item%s:</strong></p>\n", len(lines), plural)
	b.WriteString(ProductList(lines))
	subtotal, tax, total := Totals(lines)
	fmt.Fprintf(&b, "\n<p>Subtotal: $%.2f<br>Tax (8%%): $%.2f<br><strong>Total: $%.2f</strong></p>", subtotal, tax, total)
	return b.String()
}

// RemoveSelector renders a dropdown for picking a cart item to remove when
// matching was too ambiguous to act on.
func RemoveSelector(lines []Line) string {
	var b strings.Builder
	b.WriteString(`<div class="remove-selector">
<p>Select an item to remove:</p>
<select id="removeSelect">
`)
	for _, l := range lines {
		core := coreName(l.Name)
		fmt.Fprintf(&b, "<option value=\"%s\">%s ($%s)</option>\n",
			template.HTMLEscapeString(core), template.HTMLEscapeString(l.Name), template.HTMLEscapeString(l.Price))
	}
	b.WriteString(`</select>
<button onclick="(function(){var s=document.getElementById('removeSelect');var v=s.options[s.selectedIndex].value;var inp=document.querySelector('input[name=q]');inp.value='remove '+v;inp.form.submit();})();">Remove Selected Item</button>
</div>`)
	return b.String()
}

// coreName reduces a product name to its leading token, the piece the cart
// backend matches remove buttons against.
func coreName(name string) string {
	head := strings.TrimSpace(strings.Split(name, ",")[0])
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ClarificationChips renders the fixed guided clarification prompt for vague
// queries: product type, budget and color quick-reply chips.
func ClarificationChips() string {
	var b strings.Builder
	b.WriteString("<p>I'd love to help you find the perfect furniture! Let me ask a few questions to narrow down your search:</p>\n")
	b.WriteString(chipGroup("1. What type are you looking for?",
		"office chair", "dining chair", "armchair", "outdoor chair"))
	b.WriteString(chipGroup("2. What's your budget?",
		"under $100", "$100 to $200", "$200 to $300", "over $300"))
	b.WriteString(chipGroup("3. Any color preferences?",
		"black", "white", "gray", "brown", "any color"))
	b.WriteString("<p>You can type your preferences or click the options above!</p>")
	return b.String()
}

func chipGroup(title string, options ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div class=\"chip-group\"><strong>%s</strong><div class=\"quick-actions\">\n", template.HTMLEscapeString(title))
	for _, opt := range options {
		esc := template.HTMLEscapeString(opt)
		fmt.Fprintf(&b, "<div class=\"quick-action-chip\" onclick=\"document.querySelector('input[name=q]').value='%s';document.querySelector('form').submit()\">%s</div>\n", esc, esc)
	}
	b.WriteString("</div></div>\n")
	return b.String()
}

// Clip embeds a recorded action artifact. Screenshots render as images,
// anything else as a video element.
func Clip(path string) string {
	if path == "" {
		return ""
	}
	esc := template.HTMLEscapeString(path)
	if strings.HasSuffix(path, ".png") || strings.HasSuffix(path, ".jpg") {
		return fmt.Sprintf("<div class=\"clip-container\"><img src=\"/videos/%s\" class=\"action-clip\" alt=\"cart action\"></div>", esc)
	}
	return fmt.Sprintf("<div class=\"clip-container\"><video controls autoplay muted loop class=\"action-clip\"><source src=\"/videos/%s\" type=\"video/webm\"></video></div>", esc)
}

// SuccessBanner wraps a confirmation message.
func SuccessBanner(msg string) string {
	return fmt.Sprintf("<div class=\"success-message\">%s</div>", template.HTMLEscapeString(msg))
}
