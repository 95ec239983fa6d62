package notify

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dealwatch/internal/model"
)

const descriptionLimit = 600

// Subject returns the one-line headline of a notification.
func Subject(n model.Notification) string {
	if n.Label != "" {
		return n.Label + ": " + n.Title
	}
	return n.Title
}

// FormatNotification formats a deal notification as a plain-text message.
func FormatNotification(n model.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", Subject(n))
	fmt.Fprintf(&b, "Temperature: %d°\n", int(math.Floor(n.Temperature)))
	if n.Price != nil {
		fmt.Fprintf(&b, "Price: %s", formatPrice(*n.Price))
		if n.NextBestPrice != nil && *n.NextBestPrice > 0 {
			discount := math.Round((1 - *n.Price / *n.NextBestPrice) * 100)
			fmt.Fprintf(&b, " (instead of %s, -%d%%)", formatPrice(*n.NextBestPrice), int(discount))
		}
		b.WriteString("\n")
	}
	if !n.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", n.PublishedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	if n.Description != "" {
		desc := n.Description
		if runes := []rune(desc); len(runes) > descriptionLimit {
			desc = string(runes[:descriptionLimit]) + "..."
		}
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(n.URL)
	return b.String()
}

// FormatError formats an error notification.
func FormatError(r model.ErrorReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", r.Message)
	if r.Stack != "" {
		fmt.Fprintf(&b, "\nStack:\n%s\n", r.Stack)
	}
	if len(r.Context) > 0 {
		keys := make([]string, 0, len(r.Context))
		for k := range r.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nContext:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, r.Context[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPrice(p float64) string {
	return strings.Replace(strconv.FormatFloat(p, 'f', -1, 64), ".", ",", 1) + "€"
}
