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

// InstagramAdapter searches hashtag media via the Instagram Graph API.
// Instagram has no free-text post search; keywords are mapped to
// hashtags (spaces stripped) and recent media for the hashtag is
// scanned for the keyword.
type InstagramAdapter struct {
	BaseURL string
	client  *http.Client
}

// NewInstagramAdapter creates an Instagram adapter.
func NewInstagramAdapter() *InstagramAdapter {
	return &InstagramAdapter{
		BaseURL: defaultGraphBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search finds recent media for the keyword's hashtag form.
func (ig *InstagramAdapter) Search(ctx context.Context, cred Credential, keyword string, maxResults int) ([]RawPost, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("instagram search requires an access token")
	}
	if maxResults <= 0 {
		maxResults = 25
	}

	hashtagID, err := ig.lookupHashtag(ctx, cred, hashtagForm(keyword))
	if err != nil {
		return nil, err
	}
	if hashtagID == "" {
		return nil, nil // no such hashtag: no results, not an error
	}

	params := url.Values{
		"user_id":      {cred.AccountName},
		"fields":       {"id,caption,permalink,timestamp,username"},
		"limit":        {fmt.Sprintf("%d", maxResults)},
		"access_token": {cred.AccessToken},
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		ig.BaseURL+"/"+hashtagID+"/recent_media?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instagram search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("instagram search returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			ID        string `json:"id"`
			Caption   string `json:"caption"`
			Permalink string `json:"permalink"`
			Timestamp string `json:"timestamp"`
			Username  string `json:"username"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding instagram response: %w", err)
	}

	var posts []RawPost
	for _, m := range result.Data {
		if m.ID == "" || m.Caption == "" {
			continue
		}
		post := RawPost{
			PostID:     m.ID,
			Content:    strings.TrimSpace(m.Caption),
			AuthorName: m.Username,
			PostURL:    m.Permalink,
		}
		if m.Username != "" {
			post.AuthorURL = "https://instagram.com/" + m.Username
		}
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp); err == nil {
			post.PostedAt = ts
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// PostReply comments on a media object and returns the comment ID.
func (ig *InstagramAdapter) PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error) {
	if cred.AccessToken == "" {
		return "", fmt.Errorf("instagram reply requires an access token")
	}

	endpoint := ig.BaseURL + "/" + postID + "/comments"
	if commentID != "" {
		endpoint = ig.BaseURL + "/" + commentID + "/replies"
	}

	form := url.Values{
		"message":      {text},
		"access_token": {cred.AccessToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("instagram reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("instagram reply returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reply response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram reply returned no comment id")
	}
	return result.ID, nil
}

func (ig *InstagramAdapter) lookupHashtag(ctx context.Context, cred Credential, tag string) (string, error) {
	params := url.Values{
		"user_id":      {cred.AccountName},
		"q":            {tag},
		"access_token": {cred.AccessToken},
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		ig.BaseURL+"/ig_hashtag_search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("instagram hashtag lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("instagram hashtag lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding hashtag response: %w", err)
	}
	if len(result.Data) == 0 {
		return "", nil
	}
	return result.Data[0].ID, nil
}

func hashtagForm(keyword string) string {
	return strings.ToLower(strings.ReplaceAll(keyword, " ", ""))
}
