package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultLinkedInBaseURL = "https://api.linkedin.com/v2"

// LinkedInAdapter searches posts and comments via the LinkedIn REST API.
type LinkedInAdapter struct {
	BaseURL string
	client  *http.Client
}

// NewLinkedInAdapter creates a LinkedIn adapter.
func NewLinkedInAdapter() *LinkedInAdapter {
	return &LinkedInAdapter{
		BaseURL: defaultLinkedInBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search looks for posts mentioning the keyword.
func (l *LinkedInAdapter) Search(ctx context.Context, cred Credential, keyword string, maxResults int) ([]RawPost, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("linkedin search requires an access token")
	}
	if maxResults <= 0 {
		maxResults = 25
	}

	params := url.Values{
		"q":        {"keywords"},
		"keywords": {keyword},
		"count":    {fmt.Sprintf("%d", maxResults)},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", l.BaseURL+"/posts?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("linkedin search returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Elements []struct {
			ID         string `json:"id"`
			Commentary string `json:"commentary"`
			Author     string `json:"author"`
			AuthorName string `json:"authorName"`
			CreatedAt  int64  `json:"createdAt"`
		} `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding linkedin response: %w", err)
	}

	var posts []RawPost
	for _, e := range result.Elements {
		if e.ID == "" || e.Commentary == "" {
			continue
		}
		post := RawPost{
			PostID:     e.ID,
			Content:    strings.TrimSpace(e.Commentary),
			AuthorName: e.AuthorName,
			AuthorID:   e.Author,
			PostURL:    "https://www.linkedin.com/feed/update/" + e.ID,
		}
		if e.CreatedAt > 0 {
			post.PostedAt = time.UnixMilli(e.CreatedAt).UTC()
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// PostReply comments on a post via socialActions and returns the
// comment URN.
func (l *LinkedInAdapter) PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error) {
	if cred.AccessToken == "" {
		return "", fmt.Errorf("linkedin reply requires an access token")
	}

	payload := map[string]any{
		"actor":   "urn:li:person:" + cred.AccountName,
		"message": map[string]string{"text": text},
	}
	if commentID != "" {
		payload["parentComment"] = commentID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling comment: %w", err)
	}

	endpoint := l.BaseURL + "/socialActions/" + url.PathEscape(postID) + "/comments"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("linkedin reply returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reply response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("linkedin reply returned no comment id")
	}
	return result.ID, nil
}
