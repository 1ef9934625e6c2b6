package engage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/platform"
)

// Scorer rates the sentiment of a piece of text in [-1, 1].
type Scorer interface {
	Score(ctx context.Context, text string) float64
}

// Responder drafts a reply for a match.
type Responder interface {
	Generate(ctx context.Context, campaign *database.Campaign, match *database.Match) (string, error)
}

// Engager drives pending matches through the engagement lifecycle:
// sentiment gate, response generation, posting. Every match reaches
// exactly one terminal state per attempt; matches the adapter rejects
// are marked failed and never retried automatically.
type Engager struct {
	db        *database.DB
	registry  *platform.Registry
	scorer    Scorer
	responder Responder

	batchSize int
	postDelay time.Duration
	threshold float64
}

// Options bounds a single engagement cycle.
type Options struct {
	BatchSize          int
	PostDelay          time.Duration
	SentimentThreshold float64
}

// Result summarizes one engagement cycle over a campaign.
type Result struct {
	CampaignID int64
	Processed  int
	Engaged    int
	Skipped    int
	Failed     int
}

// New creates an Engager.
func New(db *database.DB, registry *platform.Registry, scorer Scorer, responder Responder, opts Options) *Engager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return &Engager{
		db:        db,
		registry:  registry,
		scorer:    scorer,
		responder: responder,
		batchSize: opts.BatchSize,
		postDelay: opts.PostDelay,
		threshold: opts.SentimentThreshold,
	}
}

// ProcessCampaign works through up to one batch of the campaign's
// pending matches. Per-match failures are recorded on the match and do
// not abort the batch; only configuration errors (unknown platform)
// abort the cycle.
func (e *Engager) ProcessCampaign(ctx context.Context, campaign *database.Campaign) (*Result, error) {
	matches, err := e.db.GetPendingMatches(campaign.ID, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("loading pending matches: %w", err)
	}

	result := &Result{CampaignID: campaign.ID}
	var postAttempted bool
	for i := range matches {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if postAttempted {
			// Pace outbound posts so a batch does not burst. A rejected
			// post still counts: the platform is already pushing back.
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(e.postDelay):
			}
		}

		outcome, attempted, err := e.processMatch(ctx, campaign, &matches[i])
		if attempted {
			postAttempted = true
		}
		if err != nil {
			return result, err
		}
		result.Processed++
		switch outcome {
		case database.StatusEngaged:
			result.Engaged++
		case database.StatusSkipped:
			result.Skipped++
		case database.StatusFailed:
			result.Failed++
		}
	}
	return result, nil
}

// processMatch drives one match to a terminal state. attempted reports
// whether a post call went out to the platform, successful or not;
// pacing keys off it.
func (e *Engager) processMatch(ctx context.Context, campaign *database.Campaign, match *database.Match) (outcome database.MatchStatus, attempted bool, err error) {
	score := e.scorer.Score(ctx, match.Content)
	if err := e.db.UpdateMatchSentiment(match.ID, score); err != nil {
		return "", false, fmt.Errorf("recording sentiment for match %d: %w", match.ID, err)
	}

	if score < e.threshold {
		note := fmt.Sprintf("sentiment %.2f below threshold %.2f", score, e.threshold)
		if err := e.db.MarkMatchSkipped(match.ID, note); err != nil {
			return "", false, fmt.Errorf("skipping match %d: %w", match.ID, err)
		}
		log.Printf("match %d skipped: %s", match.ID, note)
		return database.StatusSkipped, false, nil
	}

	responseText, err := e.responder.Generate(ctx, campaign, match)
	if err != nil {
		return e.fail(match, false, fmt.Sprintf("response generation failed: %v", err))
	}

	account, err := e.db.GetActiveAccount(campaign.UserID, match.Platform)
	if err != nil {
		return "", false, fmt.Errorf("loading account for match %d: %w", match.ID, err)
	}
	if account == nil {
		return e.fail(match, false, fmt.Sprintf("no active %s account connected", match.Platform))
	}

	adapter, err := e.registry.Lookup(match.Platform)
	if err != nil {
		return "", false, err
	}

	cred := platform.Credential{AccessToken: account.AccessToken, AccountName: account.AccountName}
	responseID, err := adapter.PostReply(ctx, cred, match.PostID, match.CommentID, responseText)
	if err != nil {
		return e.fail(match, true, fmt.Sprintf("posting reply failed: %v", err))
	}

	if err := e.db.MarkMatchEngaged(match.ID, responseText, responseID); err != nil {
		return "", true, fmt.Errorf("marking match %d engaged: %w", match.ID, err)
	}
	if _, err := e.db.InsertEngagementLog(&database.EngagementLog{
		CampaignID:   campaign.ID,
		MatchID:      match.ID,
		Platform:     match.Platform,
		ResponseText: responseText,
		ResponseID:   responseID,
		Outcome:      "posted",
	}); err != nil {
		return "", true, fmt.Errorf("logging engagement for match %d: %w", match.ID, err)
	}
	log.Printf("match %d engaged on %s (response %s)", match.ID, match.Platform, responseID)
	return database.StatusEngaged, true, nil
}

func (e *Engager) fail(match *database.Match, attempted bool, note string) (database.MatchStatus, bool, error) {
	if err := e.db.MarkMatchFailed(match.ID, note); err != nil {
		return "", attempted, fmt.Errorf("marking match %d failed: %w", match.ID, err)
	}
	log.Printf("match %d failed: %s", match.ID, note)
	return database.StatusFailed, attempted, nil
}
