package credits

import (
	"net/url"
	"strings"
)

// Pack is a purchasable bundle of call credits.
type Pack struct {
	PriceCents int64 `json:"priceCents"`
	Credits    int64 `json:"credits"`
}

// Packs lists the purchasable bundles, cheapest first.
var Packs = []Pack{
	{PriceCents: 2500, Credits: 5000},
	{PriceCents: 10000, Credits: 25000},
	{PriceCents: 50000, Credits: 150000},
}

// PackForAmount maps a paid amount in cents to its pack.
func PackForAmount(cents int64) (Pack, bool) {
	for _, p := range Packs {
		if p.PriceCents == cents {
			return p, true
		}
	}
	return Pack{}, false
}

// PurchaseLink fills {account_id} in the configured purchase URL template.
func PurchaseLink(template, accountID string) string {
	return strings.ReplaceAll(template, "{account_id}", url.QueryEscape(accountID))
}
