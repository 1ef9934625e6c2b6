package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v18.0"

// FacebookAdapter searches public posts and comments via the Graph API.
type FacebookAdapter struct {
	BaseURL string
	client  *http.Client
}

// NewFacebookAdapter creates a Facebook adapter.
func NewFacebookAdapter() *FacebookAdapter {
	return &FacebookAdapter{
		BaseURL: defaultGraphBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search looks for public posts mentioning the keyword.
func (f *FacebookAdapter) Search(ctx context.Context, cred Credential, keyword string, maxResults int) ([]RawPost, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("facebook search requires an access token")
	}
	if maxResults <= 0 {
		maxResults = 25
	}

	params := url.Values{
		"q":            {keyword},
		"type":         {"post"},
		"fields":       {"id,message,created_time,permalink_url,from{id,name}"},
		"limit":        {fmt.Sprintf("%d", maxResults)},
		"access_token": {cred.AccessToken},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", f.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("facebook search returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			ID           string `json:"id"`
			Message      string `json:"message"`
			CreatedTime  string `json:"created_time"`
			PermalinkURL string `json:"permalink_url"`
			From         struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"from"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding facebook response: %w", err)
	}

	var posts []RawPost
	for _, p := range result.Data {
		if p.ID == "" || p.Message == "" {
			continue
		}
		post := RawPost{
			PostID:     p.ID,
			Content:    strings.TrimSpace(p.Message),
			AuthorName: p.From.Name,
			AuthorID:   p.From.ID,
			PostURL:    p.PermalinkURL,
		}
		if p.From.ID != "" {
			post.AuthorURL = "https://facebook.com/" + p.From.ID
		}
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", p.CreatedTime); err == nil {
			post.PostedAt = ts
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// PostReply comments on a post (or replies to a comment) and returns
// the new comment's ID.
func (f *FacebookAdapter) PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error) {
	if cred.AccessToken == "" {
		return "", fmt.Errorf("facebook reply requires an access token")
	}

	// Graph API: POST /{object-id}/comments works for both posts and comments.
	target := postID
	if commentID != "" {
		target = commentID
	}

	form := url.Values{
		"message":      {text},
		"access_token": {cred.AccessToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		f.BaseURL+"/"+target+"/comments", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("facebook reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("facebook reply returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reply response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("facebook reply returned no comment id")
	}
	return result.ID, nil
}
