package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// DealNotifier adapts a Notifier to the pipeline's alert sink: every emitted
// deal becomes one "deal_found" notification.
type DealNotifier struct {
	notifier *Notifier
}

// NewDealNotifier creates a DealNotifier.
func NewDealNotifier(n *Notifier) *DealNotifier {
	return &DealNotifier{notifier: n}
}

// SendDeal formats and dispatches one deal alert.
func (d *DealNotifier) SendDeal(ctx context.Context, alert domain.DealAlert) error {
	title := fmt.Sprintf("Deal: %s", alert.Query)
	return d.notifier.Notify(ctx, EventDealFound, title, FormatDeal(alert))
}

// FormatDeal renders a deal as a human-readable message: the listing, how
// far under the market average it sits, and the link.
func FormatDeal(alert domain.DealAlert) string {
	l := alert.Listing

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", l.Title)
	fmt.Fprintf(&b, "Price: %s (market average %s, %d samples)\n",
		FormatAmount(*l.Price, l.Currency),
		FormatAmount(int64(alert.Stats.Mean), l.Currency),
		alert.Stats.SampleCount,
	)
	fmt.Fprintf(&b, "Source: %s\n", l.Source)
	fmt.Fprintf(&b, "%s", l.URL)
	return b.String()
}

// FormatAmount renders minor units as a currency string, e.g. 123450 GBP →
// "£1234.50".
func FormatAmount(minorUnits int64, currency string) string {
	symbol := currency + " "
	switch currency {
	case "USD":
		symbol = "$"
	case "GBP":
		symbol = "£"
	case "EUR":
		symbol = "€"
	}
	return fmt.Sprintf("%s%d.%02d", symbol, minorUnits/100, minorUnits%100)
}
