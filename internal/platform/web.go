package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const (
	defaultRedditSearchURL = "https://www.reddit.com/search.rss"
	defaultRedditOAuthURL  = "https://oauth.reddit.com"

	// Entries shorter than this get a readability fetch of the post page.
	thinContentLength = 140
)

// WebAdapter covers public keyword search. Discovery rides Reddit's
// public search RSS (no credential needed); replies go through the
// Reddit API and do require a connected account.
type WebAdapter struct {
	SearchURL string
	OAuthURL  string
	client    *http.Client
	parser    *gofeed.Parser
}

// NewWebAdapter creates a web/public-search adapter.
func NewWebAdapter() *WebAdapter {
	return &WebAdapter{
		SearchURL: defaultRedditSearchURL,
		OAuthURL:  defaultRedditOAuthURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
	}
}

// Search queries the public search feed for the keyword. Works without
// a credential.
func (w *WebAdapter) Search(ctx context.Context, _ Credential, keyword string, maxResults int) ([]RawPost, error) {
	if maxResults <= 0 {
		maxResults = 25
	}

	params := url.Values{
		"q":    {keyword},
		"sort": {"new"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", w.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "keywatch/1.0 (keyword monitor)")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned %d", resp.StatusCode)
	}

	feed, err := w.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search feed: %w", err)
	}

	var posts []RawPost
	for _, item := range feed.Items {
		if len(posts) >= maxResults {
			break
		}
		post := w.parseItem(ctx, item)
		if post == nil {
			continue
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

func (w *WebAdapter) parseItem(ctx context.Context, item *gofeed.Item) *RawPost {
	link := item.Link
	if link == "" {
		return nil
	}

	content := strings.TrimSpace(item.Title)
	body := stripHTML(item.Content)
	if body == "" {
		body = stripHTML(item.Description)
	}
	if body != "" {
		content = content + " " + body
	}

	post := &RawPost{
		PostID:  postIDFromLink(link, item.GUID),
		Content: content,
		PostURL: link,
	}
	if item.Author != nil {
		post.AuthorName = strings.TrimPrefix(item.Author.Name, "/u/")
		post.AuthorURL = "https://www.reddit.com/user/" + post.AuthorName
	}
	if item.PublishedParsed != nil {
		post.PostedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		post.PostedAt = *item.UpdatedParsed
	}

	// Title-only entries get the page body extracted.
	if body == "" && len(post.Content) < thinContentLength {
		if page := w.fetchPageContent(ctx, link); page != "" {
			post.Content = post.Content + " " + page
		}
	}
	return post
}

// fetchPageContent pulls the post page and extracts readable text.
// Best effort: any failure leaves the RSS content as-is.
func (w *WebAdapter) fetchPageContent(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "keywatch/1.0 (keyword monitor)")

	resp, err := w.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 2000 {
		text = text[:2000]
	}
	return text
}

// PostReply comments on a Reddit post (or reply to a comment) through
// the authenticated API.
func (w *WebAdapter) PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error) {
	if cred.AccessToken == "" {
		return "", fmt.Errorf("web reply requires a connected reddit account")
	}

	// Fullname prefixes: t3_ for posts, t1_ for comments.
	thing := "t3_" + postID
	if commentID != "" {
		thing = "t1_" + commentID
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {thing},
		"text":     {text},
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		w.OAuthURL+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "keywatch/1.0 (keyword monitor)")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("web reply returned %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading reply response: %w", err)
	}

	id := extractRedditID(string(body))
	if id == "" {
		return "", fmt.Errorf("web reply returned no comment id")
	}
	return id, nil
}

// extractRedditID pulls the new comment fullname out of the nested
// api_type=json response without modeling the whole envelope.
func extractRedditID(body string) string {
	marker := `"name": "`
	idx := strings.Index(body, marker)
	if idx < 0 {
		marker = `"name":"`
		idx = strings.Index(body, marker)
		if idx < 0 {
			return ""
		}
	}
	rest := body[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

// postIDFromLink derives a stable post ID from a Reddit permalink,
// falling back to the feed GUID.
func postIDFromLink(link, guid string) string {
	// Permalinks look like /r/sub/comments/<id>/title/
	parts := strings.Split(strings.Trim(link, "/"), "/")
	for i, p := range parts {
		if p == "comments" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if guid != "" {
		return strings.TrimPrefix(guid, "t3_")
	}
	return link
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
