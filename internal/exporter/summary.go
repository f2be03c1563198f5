package exporter

import (
	"sort"
	"strings"

	"macrostress/internal/balancesheet"
)

// bankSeparator goes between consecutive bank summaries.
var bankSeparator = "\n" + strings.Repeat("=", 80) + "\n"

// FormatBankSummary renders a plain-text starting position for one bank:
// headline totals, overlay shares and the bucket table sorted by bucket name.
func FormatBankSummary(b *balancesheet.Bank) string {
	var sb strings.Builder
	sb.WriteString(b.Name() + "\n")
	sb.WriteString(strings.Repeat("-", len(b.Name())) + "\n")
	sb.WriteString("Total EAD: " + FormatMoneyBn(b.TotalEAD()) + "\n")
	sb.WriteString("Total RWA: " + FormatMoneyBn(b.TotalRWA()) + "\n")
	sb.WriteString("CET1: " + FormatMoneyBn(b.CET1()) + "\n")
	sb.WriteString("CET1 ratio: " + FormatPct(b.CET1Ratio()) + "\n")

	if keys := b.OverlayKeys(); len(keys) > 0 {
		overlays := b.Overlays()
		sb.WriteString("\nOverlays (shares):\n")
		for _, k := range keys {
			sb.WriteString(" - " + k + ": " + FormatPct(overlays[k]) + "\n")
		}
	}

	buckets := b.Buckets()
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name() < buckets[j].Name() })
	rows := [][]string{{"bucket", "EAD_bn", "RW", "RWA_bn", "LGD"}}
	for _, bk := range buckets {
		rows = append(rows, []string{
			bk.Name(),
			FormatFixed(bk.EAD(), 3),
			FormatFixed(bk.RiskWeight(), 3),
			FormatFixed(bk.RWA(), 3),
			FormatFixed(bk.LGD(), 3),
		})
	}
	sb.WriteString("\nBuckets:\n")
	sb.WriteString(alignRight(rows))
	return sb.String()
}

// FormatBankSummaries joins the summaries of several banks.
func FormatBankSummaries(banks []*balancesheet.Bank) string {
	parts := make([]string, 0, len(banks))
	for _, b := range banks {
		parts = append(parts, FormatBankSummary(b))
	}
	return strings.Join(parts, bankSeparator)
}

// alignRight lays rows out as right-aligned columns separated by two spaces.
func alignRight(rows [][]string) string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(strings.Repeat(" ", widths[i]-len([]rune(cell))))
			sb.WriteString(cell)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
