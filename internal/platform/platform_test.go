package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keywatch/keywatch/internal/database"
)

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	for _, p := range database.AllPlatforms() {
		a, err := r.Lookup(p)
		if err != nil {
			t.Errorf("expected adapter for %s: %v", p, err)
		}
		if a == nil {
			t.Errorf("nil adapter for %s", p)
		}
	}

	if _, err := r.Lookup(database.Platform("myspace")); err == nil {
		t.Error("expected error for unregistered platform")
	}
}

func TestTwitterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("missing bearer token")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "100", "text": "looking for crm software recommendations", "author_id": "u1", "created_at": "2026-08-27T10:00:00Z"},
			},
			"includes": map[string]any{
				"users": []map[string]any{
					{"id": "u1", "name": "Jane", "username": "jane"},
				},
			},
		})
	}))
	defer srv.Close()

	a := NewTwitterAdapter()
	a.BaseURL = srv.URL

	posts, err := a.Search(context.Background(), Credential{AccessToken: "tok-1"}, "crm software", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].PostID != "100" || posts[0].AuthorName != "Jane" {
		t.Errorf("unexpected post: %+v", posts[0])
	}
	if posts[0].PostURL != "https://twitter.com/jane/status/100" {
		t.Errorf("unexpected post URL: %s", posts[0].PostURL)
	}
}

func TestTwitterSearchNoToken(t *testing.T) {
	a := NewTwitterAdapter()
	if _, err := a.Search(context.Background(), Credential{}, "crm", 10); err == nil {
		t.Error("expected error without access token")
	}
}

func TestTwitterPostReply(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "201"}})
	}))
	defer srv.Close()

	a := NewTwitterAdapter()
	a.BaseURL = srv.URL

	id, err := a.PostReply(context.Background(), Credential{AccessToken: "tok"}, "100", "", "thanks!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "201" {
		t.Errorf("expected reply id 201, got %s", id)
	}
	reply, _ := gotBody["reply"].(map[string]any)
	if reply["in_reply_to_tweet_id"] != "100" {
		t.Errorf("expected reply target 100, got %v", reply)
	}
}

func TestTwitterPostReplyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewTwitterAdapter()
	a.BaseURL = srv.URL

	if _, err := a.PostReply(context.Background(), Credential{AccessToken: "tok"}, "100", "", "hi"); err == nil {
		t.Error("expected error on HTTP failure")
	}
}

func TestFacebookSearchAndReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{
						"id": "fb1", "message": "need crm software",
						"permalink_url": "https://facebook.com/fb1",
						"from":          map[string]string{"id": "a1", "name": "Al"},
					},
				},
			})
		case "/fb1/comments":
			json.NewEncoder(w).Encode(map[string]string{"id": "fb1_c9"})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewFacebookAdapter()
	a.BaseURL = srv.URL

	cred := Credential{AccessToken: "tok"}
	posts, err := a.Search(context.Background(), cred, "crm software", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].PostID != "fb1" {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	id, err := a.PostReply(context.Background(), cred, "fb1", "", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "fb1_c9" {
		t.Errorf("expected comment id fb1_c9, got %s", id)
	}
}
