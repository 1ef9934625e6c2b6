package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/keywatch/keywatch/internal/database"
)

// Summary is a point-in-time aggregate over a campaign's matches.
type Summary struct {
	CampaignID int64 `json:"campaign_id"`

	TotalMatches int `json:"total_matches"`
	LastHour     int `json:"last_hour"`
	LastDay      int `json:"last_day"`
	LastWeek     int `json:"last_week"`
	LastMonth    int `json:"last_month"`

	Pending int `json:"pending"`
	Engaged int `json:"engaged"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// EngagementRate is engaged over total, 0 when there are no matches.
	EngagementRate float64 `json:"engagement_rate"`
	// AverageSentiment covers only matches that have been scored.
	AverageSentiment *float64 `json:"average_sentiment,omitempty"`

	TopKeywords []KeywordCount `json:"top_keywords"`
}

// KeywordCount pairs a keyword with how many matches it produced.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Aggregator computes campaign analytics from stored matches.
type Aggregator struct {
	db *database.DB
}

// New creates an Aggregator.
func New(db *database.DB) *Aggregator {
	return &Aggregator{db: db}
}

const topKeywordLimit = 10

// Compute aggregates all matches of the campaign. It is a pure read;
// nothing is cached or mutated.
func (a *Aggregator) Compute(campaignID int64) (*Summary, error) {
	matches, err := a.db.GetMatchesForCampaign(campaignID)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	return summarize(campaignID, matches, time.Now()), nil
}

func summarize(campaignID int64, matches []database.Match, now time.Time) *Summary {
	s := &Summary{CampaignID: campaignID, TotalMatches: len(matches)}

	keywordCounts := make(map[string]int)
	var sentimentSum float64
	var sentimentCount int

	for i := range matches {
		m := &matches[i]

		age := now.Sub(m.DiscoveredAt)
		if age <= time.Hour {
			s.LastHour++
		}
		if age <= 24*time.Hour {
			s.LastDay++
		}
		if age <= 7*24*time.Hour {
			s.LastWeek++
		}
		if age <= 30*24*time.Hour {
			s.LastMonth++
		}

		switch m.Status {
		case database.StatusPending:
			s.Pending++
		case database.StatusEngaged:
			s.Engaged++
		case database.StatusSkipped:
			s.Skipped++
		case database.StatusFailed:
			s.Failed++
		}

		for _, k := range m.Keywords {
			keywordCounts[k]++
		}
		if m.Sentiment != nil {
			sentimentSum += *m.Sentiment
			sentimentCount++
		}
	}

	if s.TotalMatches > 0 {
		s.EngagementRate = float64(s.Engaged) / float64(s.TotalMatches)
	}
	if sentimentCount > 0 {
		avg := sentimentSum / float64(sentimentCount)
		s.AverageSentiment = &avg
	}
	s.TopKeywords = topKeywords(keywordCounts, topKeywordLimit)
	return s
}

func topKeywords(counts map[string]int, limit int) []KeywordCount {
	out := make([]KeywordCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KeywordCount{Keyword: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
