package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/keywatch/keywatch/internal/analytics"
	"github.com/keywatch/keywatch/internal/database"
)

const recentMatchLimit = 15

// Markdown builds a campaign digest as markdown. The output is
// deterministic for a given campaign, summary and match list.
func Markdown(campaign *database.Campaign, summary *analytics.Summary, matches []database.Match, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", campaign.BusinessName)
	fmt.Fprintf(&b, "Campaign report generated %s\n\n", now.Format("2006-01-02 15:04 MST"))
	if campaign.BusinessDescription != "" {
		fmt.Fprintf(&b, "%s\n\n", campaign.BusinessDescription)
	}

	fmt.Fprintf(&b, "**Keywords:** %s\n\n", strings.Join(campaign.Keywords, ", "))
	fmt.Fprintf(&b, "**Platforms:** %s\n\n", joinPlatforms(campaign.Platforms))

	b.WriteString("## Activity\n\n")
	fmt.Fprintf(&b, "| Window | Matches |\n|---|---|\n")
	fmt.Fprintf(&b, "| Last hour | %d |\n", summary.LastHour)
	fmt.Fprintf(&b, "| Last 24 hours | %d |\n", summary.LastDay)
	fmt.Fprintf(&b, "| Last 7 days | %d |\n", summary.LastWeek)
	fmt.Fprintf(&b, "| Last 30 days | %d |\n", summary.LastMonth)
	fmt.Fprintf(&b, "| All time | %d |\n\n", summary.TotalMatches)

	b.WriteString("## Engagement\n\n")
	fmt.Fprintf(&b, "- Pending: %d\n", summary.Pending)
	fmt.Fprintf(&b, "- Engaged: %d\n", summary.Engaged)
	fmt.Fprintf(&b, "- Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "- Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "- Engagement rate: %.0f%%\n", summary.EngagementRate*100)
	if summary.AverageSentiment != nil {
		fmt.Fprintf(&b, "- Average sentiment: %.2f\n", *summary.AverageSentiment)
	}
	b.WriteString("\n")

	if len(summary.TopKeywords) > 0 {
		b.WriteString("## Top keywords\n\n")
		for _, kc := range summary.TopKeywords {
			fmt.Fprintf(&b, "- %s (%d)\n", kc.Keyword, kc.Count)
		}
		b.WriteString("\n")
	}

	if len(matches) > 0 {
		b.WriteString("## Recent matches\n\n")
		limit := len(matches)
		if limit > recentMatchLimit {
			limit = recentMatchLimit
		}
		for i := 0; i < limit; i++ {
			writeMatch(&b, &matches[i])
		}
	}

	return b.String()
}

func writeMatch(b *strings.Builder, m *database.Match) {
	author := m.AuthorName
	if author == "" {
		author = "unknown"
	}
	fmt.Fprintf(b, "### %s on %s (%s)\n\n", author, m.Platform, m.Status)
	fmt.Fprintf(b, "> %s\n\n", excerpt(m.Content, 240))
	if m.PostURL != "" {
		fmt.Fprintf(b, "[View post](%s)\n\n", m.PostURL)
	}
	if m.Status == database.StatusEngaged && m.ResponseText != nil {
		fmt.Fprintf(b, "**Reply:** %s\n\n", *m.ResponseText)
	}
	if (m.Status == database.StatusSkipped || m.Status == database.StatusFailed) && m.Note != nil {
		fmt.Fprintf(b, "*%s*\n\n", *m.Note)
	}
}

// RenderHTML converts a markdown digest to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

func joinPlatforms(platforms []database.Platform) string {
	parts := make([]string, len(platforms))
	for i, p := range platforms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
