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

const defaultTwitterBaseURL = "https://api.twitter.com/2"

// TwitterAdapter searches and replies via the Twitter/X v2 API.
type TwitterAdapter struct {
	BaseURL string
	client  *http.Client
}

// NewTwitterAdapter creates a Twitter adapter.
func NewTwitterAdapter() *TwitterAdapter {
	return &TwitterAdapter{
		BaseURL: defaultTwitterBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs a recent-tweets search for the keyword.
func (t *TwitterAdapter) Search(ctx context.Context, cred Credential, keyword string, maxResults int) ([]RawPost, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("twitter search requires an access token")
	}
	if maxResults < 10 {
		maxResults = 10 // API minimum
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{
		"query":        {fmt.Sprintf("%q -is:retweet lang:en", keyword)},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"tweet.fields": {"created_at,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"name,username"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", t.BaseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitter search returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			AuthorID  string `json:"author_id"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding twitter response: %w", err)
	}

	users := make(map[string]struct{ name, username string })
	for _, u := range result.Includes.Users {
		users[u.ID] = struct{ name, username string }{u.Name, u.Username}
	}

	var posts []RawPost
	for _, tw := range result.Data {
		post := RawPost{
			PostID:   tw.ID,
			Content:  strings.TrimSpace(tw.Text),
			AuthorID: tw.AuthorID,
		}
		if u, ok := users[tw.AuthorID]; ok {
			post.AuthorName = u.name
			post.AuthorURL = "https://twitter.com/" + u.username
			post.PostURL = fmt.Sprintf("https://twitter.com/%s/status/%s", u.username, tw.ID)
		} else {
			post.PostURL = "https://twitter.com/i/web/status/" + tw.ID
		}
		if ts, err := time.Parse(time.RFC3339, tw.CreatedAt); err == nil {
			post.PostedAt = ts
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// PostReply posts a reply tweet and returns its ID.
func (t *TwitterAdapter) PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error) {
	if cred.AccessToken == "" {
		return "", fmt.Errorf("twitter reply requires an access token")
	}

	// Replying to a reply targets that tweet directly.
	target := postID
	if commentID != "" {
		target = commentID
	}

	body, err := json.Marshal(map[string]any{
		"text":  text,
		"reply": map[string]string{"in_reply_to_tweet_id": target},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.BaseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("twitter reply returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reply response: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("twitter reply returned no tweet id")
	}
	return result.Data.ID, nil
}
