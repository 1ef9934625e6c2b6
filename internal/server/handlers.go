package server

import (
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/report"
)

type campaignRequest struct {
	UserID              int64                     `json:"user_id"`
	BusinessName        string                    `json:"business_name"`
	BusinessDescription string                    `json:"business_description"`
	Keywords            []string                  `json:"keywords"`
	Platforms           []string                  `json:"platforms"`
	IsActive            *bool                     `json:"is_active"`
	AutoEngage          bool                      `json:"auto_engage"`
	Engagement          database.EngagementConfig `json:"engagement"`
}

type campaignResponse struct {
	ID                  int64                     `json:"id"`
	UserID              int64                     `json:"user_id"`
	BusinessName        string                    `json:"business_name"`
	BusinessDescription string                    `json:"business_description,omitempty"`
	Keywords            []string                  `json:"keywords"`
	Platforms           []database.Platform       `json:"platforms"`
	IsActive            bool                      `json:"is_active"`
	AutoEngage          bool                      `json:"auto_engage"`
	Engagement          database.EngagementConfig `json:"engagement"`
	LastScannedAt       *time.Time                `json:"last_scanned_at,omitempty"`
}

func campaignJSON(c *database.Campaign) campaignResponse {
	return campaignResponse{
		ID:                  c.ID,
		UserID:              c.UserID,
		BusinessName:        c.BusinessName,
		BusinessDescription: c.BusinessDescription,
		Keywords:            c.Keywords,
		Platforms:           c.Platforms,
		IsActive:            c.IsActive,
		AutoEngage:          c.AutoEngage,
		Engagement:          c.Engagement,
		LastScannedAt:       c.LastScannedAt,
	}
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.BusinessName == "" {
		writeError(w, http.StatusBadRequest, "business_name is required")
		return
	}

	platforms := make([]database.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		parsed, err := database.ParsePlatform(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		platforms = append(platforms, parsed)
	}

	c := &database.Campaign{
		UserID:              req.UserID,
		BusinessName:        req.BusinessName,
		BusinessDescription: req.BusinessDescription,
		Keywords:            req.Keywords,
		Platforms:           platforms,
		IsActive:            true,
		AutoEngage:          req.AutoEngage,
		Engagement:          req.Engagement,
	}
	if c.UserID == 0 {
		c.UserID = defaultUserID
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	id, err := s.db.InsertCampaign(c)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	created, err := s.db.GetCampaign(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading campaign: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, campaignJSON(created))
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.db.GetAllCampaigns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading campaigns: %v", err)
		return
	}
	out := make([]campaignResponse, len(campaigns))
	for i := range campaigns {
		out[i] = campaignJSON(&campaigns[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, campaignJSON(c))
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	if err := s.db.DeleteCampaign(c.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "deleting campaign: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.campaignParam(w, r)
		if c == nil {
			return
		}
		if err := s.db.SetCampaignActive(c.ID, active); err != nil {
			writeError(w, http.StatusInternalServerError, "updating campaign: %v", err)
			return
		}
		c.IsActive = active
		writeJSON(w, http.StatusOK, campaignJSON(c))
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	result := s.scanner.Scan(r.Context(), c)

	platformErrors := make(map[string]string)
	for p, err := range result.PlatformErrors {
		platformErrors[string(p)] = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_found":     result.TotalFound,
		"new_matches":     result.NewMatches,
		"duplicates":      result.Duplicates,
		"platform_errors": platformErrors,
	})
}

func (s *Server) handleEngage(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	result, err := s.engager.ProcessCampaign(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "engaging campaign: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"processed": result.Processed,
		"engaged":   result.Engaged,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
}

func (s *Server) handleEngagementStart(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	cfg := c.Engagement
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}
	if err := s.db.SetAutoEngagement(c.ID, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleEngagementStop(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	if err := s.db.SetAutoEngagement(c.ID, nil); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	summary, err := s.analytics.Compute(c.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "computing stats: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type matchResponse struct {
	ID           int64             `json:"id"`
	Platform     database.Platform `json:"platform"`
	PostID       string            `json:"post_id"`
	CommentID    string            `json:"comment_id,omitempty"`
	Content      string            `json:"content"`
	AuthorName   string            `json:"author_name,omitempty"`
	PostURL      string            `json:"post_url,omitempty"`
	Keywords     []string          `json:"keywords"`
	Status       string            `json:"status"`
	Sentiment    *float64          `json:"sentiment,omitempty"`
	ResponseText *string           `json:"response_text,omitempty"`
	Note         *string           `json:"note,omitempty"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	EngagedAt    *time.Time        `json:"engaged_at,omitempty"`
}

func (s *Server) handleCampaignMatches(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	matches, err := s.db.GetMatchesForCampaign(c.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading matches: %v", err)
		return
	}
	out := make([]matchResponse, len(matches))
	for i := range matches {
		m := &matches[i]
		out[i] = matchResponse{
			ID:           m.ID,
			Platform:     m.Platform,
			PostID:       m.PostID,
			CommentID:    m.CommentID,
			Content:      m.Content,
			AuthorName:   m.AuthorName,
			PostURL:      m.PostURL,
			Keywords:     m.Keywords,
			Status:       string(m.Status),
			Sentiment:    m.Sentiment,
			ResponseText: m.ResponseText,
			Note:         m.Note,
			DiscoveredAt: m.DiscoveredAt,
			EngagedAt:    m.EngagedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type accountRequest struct {
	UserID      int64  `json:"user_id"`
	Platform    string `json:"platform"`
	AccountName string `json:"account_name"`
	AccessToken string `json:"access_token"`
}

type accountResponse struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Platform    database.Platform `json:"platform"`
	AccountName string            `json:"account_name"`
	IsActive    bool              `json:"is_active"`
}

func (s *Server) handleConnectAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	platform, err := database.ParsePlatform(req.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}
	if req.UserID == 0 {
		req.UserID = defaultUserID
	}

	id, err := s.db.UpsertSocialAccount(&database.SocialAccount{
		UserID:      req.UserID,
		Platform:    platform,
		AccountName: req.AccountName,
		AccessToken: req.AccessToken,
		IsActive:    true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "saving account: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{
		ID: id, UserID: req.UserID, Platform: platform,
		AccountName: req.AccountName, IsActive: true,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.db.GetAccountsForUser(defaultUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading accounts: %v", err)
		return
	}
	out := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = accountResponse{
			ID: a.ID, UserID: a.UserID, Platform: a.Platform,
			AccountName: a.AccountName, IsActive: a.IsActive,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading stats: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"total_campaigns":  stats.TotalCampaigns,
		"active_campaigns": stats.ActiveCampaigns,
		"total_matches":    stats.TotalMatches,
		"pending_matches":  stats.PendingMatches,
		"engaged_matches":  stats.EngagedMatches,
		"engagement_logs":  stats.EngagementLogs,
		"social_accounts":  stats.SocialAccounts,
	})
}

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - keywatch</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; color: #222; }
blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	c := s.campaignParam(w, r)
	if c == nil {
		return
	}
	summary, err := s.analytics.Compute(c.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "computing stats: %v", err)
		return
	}
	matches, err := s.db.GetMatchesForCampaign(c.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading matches: %v", err)
		return
	}

	md := report.Markdown(c, summary, matches, time.Now())
	body, err := report.RenderHTML(md)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportPage.Execute(w, map[string]any{
		"Title": c.BusinessName,
		"Body":  template.HTML(body),
	}); err != nil {
		log.Printf("rendering report page: %v", err)
	}
}
