package engage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/platform"
)

// fixedScorer returns the same sentiment for every text.
type fixedScorer struct {
	score float64
	calls int
}

func (s *fixedScorer) Score(_ context.Context, _ string) float64 {
	s.calls++
	return s.score
}

// fixedResponder returns a canned reply or a canned error.
type fixedResponder struct {
	reply string
	err   error
	calls int
}

func (r *fixedResponder) Generate(_ context.Context, _ *database.Campaign, _ *database.Match) (string, error) {
	r.calls++
	return r.reply, r.err
}

// fakeAdapter records posted replies.
type fakeAdapter struct {
	err     error
	replies int
}

func (f *fakeAdapter) Search(_ context.Context, _ platform.Credential, _ string, _ int) ([]platform.RawPost, error) {
	return nil, nil
}

func (f *fakeAdapter) PostReply(_ context.Context, _ platform.Credential, _, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.replies++
	return fmt.Sprintf("reply-%d", f.replies), nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCampaign(t *testing.T, db *database.DB) *database.Campaign {
	t.Helper()
	c := &database.Campaign{
		UserID:       1,
		BusinessName: "Acme CRM",
		Keywords:     []string{"crm software"},
		Platforms:    []database.Platform{database.PlatformTwitter},
		IsActive:     true,
		AutoEngage:   true,
	}
	id, err := db.InsertCampaign(c)
	if err != nil {
		t.Fatalf("failed to insert campaign: %v", err)
	}
	got, err := db.GetCampaign(id)
	if err != nil || got == nil {
		t.Fatalf("failed to load campaign: %v", err)
	}
	return got
}

func insertPending(t *testing.T, db *database.DB, campaignID int64, postID string) int64 {
	t.Helper()
	id, err := db.InsertMatch(&database.Match{
		CampaignID: campaignID,
		Platform:   database.PlatformTwitter,
		PostID:     postID,
		Content:    "anyone tried crm software for a small team?",
		Keywords:   []string{"crm software"},
	})
	if err != nil || id == 0 {
		t.Fatalf("failed to insert match: %v", err)
	}
	return id
}

func connectAccount(t *testing.T, db *database.DB, userID int64) {
	t.Helper()
	_, err := db.UpsertSocialAccount(&database.SocialAccount{
		UserID:      userID,
		Platform:    database.PlatformTwitter,
		AccountName: "acme",
		AccessToken: "token",
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("failed to connect account: %v", err)
	}
}

func newEngager(db *database.DB, adapter platform.Adapter, scorer Scorer, responder Responder, opts Options) *Engager {
	registry := platform.NewRegistry()
	registry.Register(database.PlatformTwitter, adapter)
	return New(db, registry, scorer, responder, opts)
}

func TestProcessCampaignEngages(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	matchID := insertPending(t, db, campaign.ID, "p1")

	adapter := &fakeAdapter{}
	e := newEngager(db, adapter, &fixedScorer{score: 0.4}, &fixedResponder{reply: "Happy to help!"}, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Processed != 1 || r.Engaged != 1 {
		t.Fatalf("expected 1 engaged, got %+v", r)
	}

	m, err := db.GetMatch(matchID)
	if err != nil {
		t.Fatalf("failed to reload match: %v", err)
	}
	if m.Status != database.StatusEngaged {
		t.Errorf("expected status engaged, got %s", m.Status)
	}
	if m.Sentiment == nil || *m.Sentiment != 0.4 {
		t.Errorf("expected recorded sentiment 0.4, got %v", m.Sentiment)
	}
	if m.ResponseText == nil || *m.ResponseText != "Happy to help!" {
		t.Errorf("expected response text recorded, got %v", m.ResponseText)
	}
	if m.ResponseID == nil || *m.ResponseID != "reply-1" {
		t.Errorf("expected platform response id recorded, got %v", m.ResponseID)
	}

	logEntry, err := db.GetEngagementLogForMatch(matchID)
	if err != nil {
		t.Fatalf("failed to load engagement log: %v", err)
	}
	if logEntry == nil {
		t.Fatal("expected an engagement log entry")
	}
	if logEntry.Outcome != "posted" || logEntry.ResponseID != "reply-1" {
		t.Errorf("unexpected log entry: %+v", logEntry)
	}
}

func TestProcessCampaignSkipsNegativeSentiment(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	matchID := insertPending(t, db, campaign.ID, "p1")

	responder := &fixedResponder{reply: "should never be used"}
	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: -0.9}, responder, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Skipped != 1 || r.Engaged != 0 {
		t.Fatalf("expected 1 skipped, got %+v", r)
	}
	if responder.calls != 0 {
		t.Errorf("responder should not run for skipped matches, ran %d times", responder.calls)
	}

	m, _ := db.GetMatch(matchID)
	if m.Status != database.StatusSkipped {
		t.Errorf("expected status skipped, got %s", m.Status)
	}
	if m.Note == nil || !strings.Contains(*m.Note, "below threshold") {
		t.Errorf("expected skip note mentioning threshold, got %v", m.Note)
	}
}

func TestProcessCampaignFailsWithoutAccount(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	matchID := insertPending(t, db, campaign.ID, "p1")

	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", r)
	}

	m, _ := db.GetMatch(matchID)
	if m.Status != database.StatusFailed {
		t.Errorf("expected status failed, got %s", m.Status)
	}
	if m.Note == nil || !strings.Contains(*m.Note, "account") {
		t.Errorf("expected failure note mentioning the account, got %v", m.Note)
	}

	logEntry, err := db.GetEngagementLogForMatch(matchID)
	if err != nil {
		t.Fatalf("failed to load engagement log: %v", err)
	}
	if logEntry != nil {
		t.Error("failed matches must not produce an engagement log")
	}
}

func TestProcessCampaignFailsOnGenerationError(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	matchID := insertPending(t, db, campaign.ID, "p1")

	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: 0.5}, &fixedResponder{err: fmt.Errorf("model unavailable")}, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", r)
	}

	m, _ := db.GetMatch(matchID)
	if m.Status != database.StatusFailed {
		t.Errorf("expected status failed, got %s", m.Status)
	}
}

func TestProcessCampaignFailsOnPostError(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	matchID := insertPending(t, db, campaign.ID, "p1")

	adapter := &fakeAdapter{err: fmt.Errorf("rate limited")}
	e := newEngager(db, adapter, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", r)
	}

	m, _ := db.GetMatch(matchID)
	if m.Status != database.StatusFailed {
		t.Errorf("expected status failed, got %s", m.Status)
	}
	if logEntry, _ := db.GetEngagementLogForMatch(matchID); logEntry != nil {
		t.Error("failed posts must not produce an engagement log")
	}
}

func TestProcessCampaignRespectsBatchSize(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	for i := 0; i < 5; i++ {
		insertPending(t, db, campaign.ID, fmt.Sprintf("p%d", i))
	}

	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{BatchSize: 2, SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Processed != 2 {
		t.Errorf("expected batch of 2, processed %d", r.Processed)
	}

	pending, _ := db.GetPendingMatches(campaign.ID, 10)
	if len(pending) != 3 {
		t.Errorf("expected 3 matches left pending, got %d", len(pending))
	}
}

func TestProcessCampaignPacesPosts(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	for i := 0; i < 3; i++ {
		insertPending(t, db, campaign.ID, fmt.Sprintf("p%d", i))
	}

	delay := 30 * time.Millisecond
	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{PostDelay: delay, SentimentThreshold: -0.7})

	start := time.Now()
	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Engaged != 3 {
		t.Fatalf("expected 3 engaged, got %+v", r)
	}
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("expected at least %v between posts, whole batch took %v", 2*delay, elapsed)
	}
}

// rejectFirstAdapter fails the first post call and records when each
// call arrives.
type rejectFirstAdapter struct {
	callTimes []time.Time
}

func (f *rejectFirstAdapter) Search(_ context.Context, _ platform.Credential, _ string, _ int) ([]platform.RawPost, error) {
	return nil, nil
}

func (f *rejectFirstAdapter) PostReply(_ context.Context, _ platform.Credential, _, _, _ string) (string, error) {
	f.callTimes = append(f.callTimes, time.Now())
	if len(f.callTimes) == 1 {
		return "", fmt.Errorf("rate limited")
	}
	return fmt.Sprintf("reply-%d", len(f.callTimes)), nil
}

func TestProcessCampaignPacesAfterFailedPost(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	insertPending(t, db, campaign.ID, "p1")
	insertPending(t, db, campaign.ID, "p2")

	delay := 30 * time.Millisecond
	adapter := &rejectFirstAdapter{}
	e := newEngager(db, adapter, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{PostDelay: delay, SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Failed != 1 || r.Engaged != 1 {
		t.Fatalf("expected 1 failed and 1 engaged, got %+v", r)
	}
	if len(adapter.callTimes) != 2 {
		t.Fatalf("expected 2 post calls, got %d", len(adapter.callTimes))
	}
	if gap := adapter.callTimes[1].Sub(adapter.callTimes[0]); gap < delay {
		t.Errorf("rejected post must still pace the next one: gap %v, want at least %v", gap, delay)
	}
}

func TestProcessCampaignIgnoresTerminalMatches(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	matchID := insertPending(t, db, campaign.ID, "p1")
	if err := db.MarkMatchSkipped(matchID, "manual review"); err != nil {
		t.Fatalf("failed to skip match: %v", err)
	}

	scorer := &fixedScorer{score: 0.5}
	e := newEngager(db, &fakeAdapter{}, scorer, &fixedResponder{reply: "hello"}, Options{SentimentThreshold: -0.7})

	r, err := e.ProcessCampaign(context.Background(), campaign)
	if err != nil {
		t.Fatalf("ProcessCampaign failed: %v", err)
	}
	if r.Processed != 0 {
		t.Errorf("terminal matches must not be reprocessed, got %+v", r)
	}
	if scorer.calls != 0 {
		t.Errorf("scorer should not run, ran %d times", scorer.calls)
	}
}

func TestProcessCampaignCancelled(t *testing.T) {
	db := openTestDB(t)
	campaign := newTestCampaign(t, db)
	connectAccount(t, db, campaign.UserID)
	insertPending(t, db, campaign.ID, "p1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngager(db, &fakeAdapter{}, &fixedScorer{score: 0.5}, &fixedResponder{reply: "hello"}, Options{SentimentThreshold: -0.7})
	if _, err := e.ProcessCampaign(ctx, campaign); err == nil {
		t.Fatal("expected context error")
	}
}
