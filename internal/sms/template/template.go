// Package template personalizes bulk SMS bodies per recipient.
package template

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DueDateLayout = "January 02"
	Unavailable   = "N/A"
	ZeroAmount    = "0.00"
)

// Bill is the recipient's first outstanding bill.
type Bill struct {
	AmountDue decimal.Decimal
	DueDate   time.Time
}

type Data struct {
	FirstName     string
	AccountNumber string
	Bill          *Bill
}

// Placeholder pairs a literal token with the function that resolves it.
type Placeholder struct {
	Token   string
	Resolve func(Data) string
}

// Placeholders are applied in this order.
var Placeholders = []Placeholder{
	{Token: "{Name}", Resolve: func(d Data) string { return d.FirstName }},
	{Token: "{Amount}", Resolve: resolveAmount},
	{Token: "{DueDate}", Resolve: resolveDueDate},
	{Token: "{AccountNumber}", Resolve: resolveAccount},
}

var printer = message.NewPrinter(language.English)

// Render substitutes every placeholder in body. Unknown braces are left untouched.
func Render(body string, d Data) string {
	out := body
	for _, p := range Placeholders {
		if !strings.Contains(out, p.Token) {
			continue
		}
		out = strings.ReplaceAll(out, p.Token, p.Resolve(d))
	}
	return out
}

// FormatAmount renders two decimals with thousands grouping, e.g. 1,234.50.
func FormatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	fixed := rounded.StringFixed(2)
	frac := fixed[strings.IndexByte(fixed, '.'):]
	return sign + printer.Sprintf("%d", rounded.IntPart()) + frac
}

func resolveAmount(d Data) string {
	if d.Bill == nil {
		return ZeroAmount
	}
	return FormatAmount(d.Bill.AmountDue)
}

func resolveDueDate(d Data) string {
	if d.Bill == nil || d.Bill.DueDate.IsZero() {
		return Unavailable
	}
	return d.Bill.DueDate.Format(DueDateLayout)
}

func resolveAccount(d Data) string {
	if strings.TrimSpace(d.AccountNumber) == "" {
		return Unavailable
	}
	return d.AccountNumber
}
