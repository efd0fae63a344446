package market

import (
	"fmt"
	"strings"

	"stonklytics/internal/domain"
)

const (
	maxSummaryBullets = 6
	maxReferences     = 3
)

// BuildSummary writes a short bullet summary for ticker from whatever
// context is available. snap and news may be empty; the result always has
// at least one bullet.
func BuildSummary(ticker string, snap *domain.StockSnapshot, news []domain.NewsArticle) domain.Summary {
	ticker = domain.NormalizeTicker(ticker)
	var lines []string

	if snap != nil {
		if snap.Name != "" {
			lines = append(lines, "Company name: "+snap.Name)
		}
		if industry := joinNonEmpty(" / ", snap.Sector, snap.Industry); industry != "" {
			lines = append(lines, "Sector / Industry: "+industry)
		}
		if snap.CurrentPrice > 0 {
			line := fmt.Sprintf("Last price $%.2f", snap.CurrentPrice)
			if snap.ClosePrice > 0 {
				change := (snap.CurrentPrice - snap.ClosePrice) / snap.ClosePrice * 100
				dir := "up"
				if change < 0 {
					dir, change = "down", -change
				}
				line += fmt.Sprintf(", %s %.2f%% from the previous close", dir, change)
			}
			lines = append(lines, line)
		}
		if snap.High52Week > 0 && snap.Low52Week > 0 {
			lines = append(lines, fmt.Sprintf("52-week range $%.2f to $%.2f", snap.Low52Week, snap.High52Week))
		}
	}

	var refs []domain.Reference
	headlines := 0
	for _, n := range news {
		if n.Title == "" || headlines == maxReferences {
			continue
		}
		headlines++
		lines = append(lines, "Recent headline: "+n.Title)
		if n.ArticleURL != "" {
			refs = append(refs, domain.Reference{Title: n.Title, URL: n.ArticleURL})
		}
	}

	if len(lines) == 0 {
		lines = []string{ticker + ": no detailed context available. " +
			"Monitor earnings, revenue growth, margins, and major product or regulatory news."}
	}
	if len(lines) > maxSummaryBullets {
		lines = lines[:maxSummaryBullets]
	}

	bullets := make([]string, len(lines))
	for i, l := range lines {
		bullets[i] = "• " + l
	}
	return domain.Summary{
		Symbol:     ticker,
		Summary:    strings.Join(bullets, "\n"),
		Source:     "fresh",
		References: refs,
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, sep)
}
