package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/engage"
	"github.com/keywatch/keywatch/internal/platform"
	"github.com/keywatch/keywatch/internal/scanner"
)

type fakeAdapter struct {
	posts   []platform.RawPost
	replies int
}

func (f *fakeAdapter) Search(_ context.Context, _ platform.Credential, _ string, _ int) ([]platform.RawPost, error) {
	return f.posts, nil
}

func (f *fakeAdapter) PostReply(_ context.Context, _ platform.Credential, _, _, _ string) (string, error) {
	f.replies++
	return fmt.Sprintf("reply-%d", f.replies), nil
}

type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(_ context.Context, _ string) float64 { return s.score }

type fixedResponder struct{ reply string }

func (r fixedResponder) Generate(_ context.Context, _ *database.Campaign, _ *database.Match) (string, error) {
	return r.reply, nil
}

func newTestServer(t *testing.T) (*Server, *database.DB, *fakeAdapter) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := &fakeAdapter{posts: []platform.RawPost{
		{PostID: "p1", Content: "looking for crm software", AuthorName: "jane"},
	}}
	registry := platform.NewRegistry()
	registry.Register(database.PlatformTwitter, adapter)

	sc := scanner.New(db, registry, 25)
	en := engage.New(db, registry, fixedScorer{score: 0.5}, fixedResponder{reply: "Happy to help!"}, engage.Options{SentimentThreshold: -0.7})
	return New(db, sc, en), db, adapter
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, w.Body.String())
	}
	return v
}

func createCampaign(t *testing.T, s *Server) campaignResponse {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/campaigns", campaignRequest{
		BusinessName: "Acme CRM",
		Keywords:     []string{"crm software"},
		Platforms:    []string{"twitter"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create campaign returned %d: %s", w.Code, w.Body.String())
	}
	return decode[campaignResponse](t, w)
}

func TestCreateCampaign(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := createCampaign(t, s)

	if c.ID == 0 || c.BusinessName != "Acme CRM" || !c.IsActive {
		t.Errorf("unexpected campaign: %+v", c)
	}
	if c.UserID != defaultUserID {
		t.Errorf("expected default user, got %d", c.UserID)
	}
	if c.Engagement.Personality != "friendly" || c.Engagement.MaxResponseLength != 280 {
		t.Errorf("expected normalized engagement defaults, got %+v", c.Engagement)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	s, _, _ := newTestServer(t)

	cases := []campaignRequest{
		{Keywords: []string{"crm"}, Platforms: []string{"twitter"}},
		{BusinessName: "Acme", Platforms: []string{"twitter"}},
		{BusinessName: "Acme", Keywords: []string{"crm"}},
		{BusinessName: "Acme", Keywords: []string{"crm"}, Platforms: []string{"myspace"}},
	}
	for i, req := range cases {
		if w := doJSON(t, s, http.MethodPost, "/api/campaigns", req); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	if w := doJSON(t, s, http.MethodGet, "/api/campaigns/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/campaigns/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestListAndDeleteCampaign(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := createCampaign(t, s)

	list := decode[[]campaignResponse](t, doJSON(t, s, http.MethodGet, "/api/campaigns", nil))
	if len(list) != 1 {
		t.Fatalf("expected 1 campaign, got %d", len(list))
	}

	if w := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/campaigns/%d", c.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("delete returned %d", w.Code)
	}
	list = decode[[]campaignResponse](t, doJSON(t, s, http.MethodGet, "/api/campaigns", nil))
	if len(list) != 0 {
		t.Errorf("expected no campaigns after delete, got %d", len(list))
	}
}

func TestActivateDeactivate(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := createCampaign(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/deactivate", c.ID), nil)
	if got := decode[campaignResponse](t, w); got.IsActive {
		t.Error("expected campaign to be inactive")
	}
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/activate", c.ID), nil)
	if got := decode[campaignResponse](t, w); !got.IsActive {
		t.Error("expected campaign to be active")
	}
}

func TestScanEndpoint(t *testing.T) {
	s, db, _ := newTestServer(t)
	c := createCampaign(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/scan", c.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scan returned %d: %s", w.Code, w.Body.String())
	}
	result := decode[map[string]any](t, w)
	if result["new_matches"].(float64) != 1 {
		t.Errorf("expected 1 new match, got %v", result)
	}

	matches, _ := db.GetMatchesForCampaign(c.ID)
	if len(matches) != 1 || matches[0].Status != database.StatusPending {
		t.Errorf("expected 1 pending match, got %+v", matches)
	}
}

func TestEngageEndpoint(t *testing.T) {
	s, db, adapter := newTestServer(t)
	c := createCampaign(t, s)

	doJSON(t, s, http.MethodPost, "/api/accounts", accountRequest{
		Platform: "twitter", AccountName: "acme", AccessToken: "token",
	})
	doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/scan", c.ID), nil)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/engage", c.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("engage returned %d: %s", w.Code, w.Body.String())
	}
	result := decode[map[string]int](t, w)
	if result["engaged"] != 1 {
		t.Errorf("expected 1 engaged, got %v", result)
	}
	if adapter.replies != 1 {
		t.Errorf("expected 1 posted reply, got %d", adapter.replies)
	}

	matches, _ := db.GetMatchesForCampaign(c.ID)
	if matches[0].Status != database.StatusEngaged {
		t.Errorf("expected engaged match, got %s", matches[0].Status)
	}
}

func TestEngagementStartStop(t *testing.T) {
	s, db, _ := newTestServer(t)
	c := createCampaign(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/engagement/start", c.ID), database.EngagementConfig{
		Personality: "professional",
		IncludeCTA:  true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("engagement start returned %d: %s", w.Code, w.Body.String())
	}
	got, _ := db.GetCampaign(c.ID)
	if !got.AutoEngage || got.Engagement.Personality != "professional" || !got.Engagement.IncludeCTA {
		t.Errorf("unexpected engagement config: %+v", got)
	}

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/engagement/stop", c.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("engagement stop returned %d", w.Code)
	}
	got, _ = db.GetCampaign(c.ID)
	if got.AutoEngage {
		t.Error("expected auto-engagement disabled")
	}
}

func TestCampaignStatsAndMatches(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := createCampaign(t, s)
	doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/scan", c.ID), nil)

	w := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/campaigns/%d/stats", c.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats returned %d", w.Code)
	}
	stats := decode[map[string]any](t, w)
	if stats["total_matches"].(float64) != 1 {
		t.Errorf("expected 1 total match, got %v", stats)
	}

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/campaigns/%d/matches", c.ID), nil)
	matches := decode[[]matchResponse](t, w)
	if len(matches) != 1 || matches[0].Status != "pending" || matches[0].AuthorName != "jane" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestAccountsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/accounts", accountRequest{
		Platform: "twitter", AccountName: "acme", AccessToken: "token",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("connect account returned %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(t, s, http.MethodPost, "/api/accounts", accountRequest{Platform: "twitter"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing token, got %d", w.Code)
	}

	accounts := decode[[]accountResponse](t, doJSON(t, s, http.MethodGet, "/api/accounts", nil))
	if len(accounts) != 1 || accounts[0].AccountName != "acme" {
		t.Errorf("unexpected accounts: %+v", accounts)
	}
}

func TestGlobalStats(t *testing.T) {
	s, _, _ := newTestServer(t)
	createCampaign(t, s)

	stats := decode[map[string]int](t, doJSON(t, s, http.MethodGet, "/api/stats", nil))
	if stats["total_campaigns"] != 1 || stats["active_campaigns"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestReportPage(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := createCampaign(t, s)
	doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/scan", c.ID), nil)

	w := doJSON(t, s, http.MethodGet, fmt.Sprintf("/campaigns/%d/report", c.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report returned %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>Acme CRM</h1>") {
		t.Errorf("expected rendered heading in report:\n%s", body)
	}
	if !strings.Contains(body, "jane") {
		t.Errorf("expected recent match in report:\n%s", body)
	}
}
