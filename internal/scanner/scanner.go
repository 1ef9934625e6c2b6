package scanner

import (
	"context"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/platform"
)

// Result holds the results of one campaign scan.
type Result struct {
	TotalFound     int
	NewMatches     int
	Duplicates     int
	Created        []database.Match
	PlatformErrors map[database.Platform]error
}

// Scanner discovers keyword matches for a campaign across its
// configured platforms.
type Scanner struct {
	db         *database.DB
	registry   *platform.Registry
	maxResults int
}

// New creates a Scanner. maxResults caps results per keyword per
// platform search; <= 0 means 25.
func New(db *database.DB, registry *platform.Registry, maxResults int) *Scanner {
	if maxResults <= 0 {
		maxResults = 25
	}
	return &Scanner{db: db, registry: registry, maxResults: maxResults}
}

// hit is one raw post plus the keyword that found it.
type hit struct {
	platform database.Platform
	post     platform.RawPost
	keyword  string
}

// Scan fans out to all configured platforms concurrently and persists
// new matches as pending. A failing platform contributes zero results
// and is recorded in PlatformErrors; it never aborts the scan. The
// campaign's last-scanned timestamp is updated regardless.
func (s *Scanner) Scan(ctx context.Context, campaign *database.Campaign) *Result {
	r := &Result{PlatformErrors: make(map[database.Platform]error)}

	var mu sync.Mutex
	var hits []hit

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range campaign.Platforms {
		g.Go(func() error {
			posts, err := s.searchPlatform(gctx, campaign, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("scan campaign %d: platform %s failed: %v", campaign.ID, p, err)
				r.PlatformErrors[p] = err
				return nil // isolate: sibling platforms keep going
			}
			hits = append(hits, posts...)
			return nil
		})
	}
	g.Wait()

	for _, m := range mergeHits(hits, campaign.ID) {
		r.TotalFound++
		id, err := s.db.InsertMatch(&m)
		if err != nil {
			log.Printf("scan campaign %d: inserting match: %v", campaign.ID, err)
			continue
		}
		if id == 0 {
			r.Duplicates++
			continue
		}
		m.ID = id
		m.Status = database.StatusPending
		r.NewMatches++
		r.Created = append(r.Created, m)
	}

	if err := s.db.UpdateLastScanned(campaign.ID); err != nil {
		log.Printf("scan campaign %d: updating last scanned: %v", campaign.ID, err)
	}

	log.Printf("scan campaign %d: %d found, %d new, %d duplicates, %d platform errors",
		campaign.ID, r.TotalFound, r.NewMatches, r.Duplicates, len(r.PlatformErrors))
	return r
}

// searchPlatform runs every campaign keyword against one platform.
// The credential is looked up once; adapters that require auth fail
// with an empty credential, which counts as a platform failure.
func (s *Scanner) searchPlatform(ctx context.Context, campaign *database.Campaign, p database.Platform) ([]hit, error) {
	adapter, err := s.registry.Lookup(p)
	if err != nil {
		return nil, err
	}

	var cred platform.Credential
	account, err := s.db.GetActiveAccount(campaign.UserID, p)
	if err != nil {
		return nil, err
	}
	if account != nil {
		cred = platform.Credential{AccessToken: account.AccessToken, AccountName: account.AccountName}
	}

	var hits []hit
	for _, keyword := range campaign.Keywords {
		if ctx.Err() != nil {
			return hits, ctx.Err()
		}
		posts, err := adapter.Search(ctx, cred, keyword, s.maxResults)
		if err != nil {
			return nil, err
		}
		for _, post := range posts {
			hits = append(hits, hit{platform: p, post: post, keyword: keyword})
		}
	}
	return hits, nil
}

// mergeHits collapses the same post found under several keywords into
// one match carrying the full matched-keyword set, so the insert sees
// each tuple exactly once per scan.
func mergeHits(hits []hit, campaignID int64) []database.Match {
	type key struct {
		platform  database.Platform
		postID    string
		commentID string
	}

	index := make(map[key]int)
	var matches []database.Match
	for _, h := range hits {
		if h.post.PostID == "" {
			continue
		}
		k := key{h.platform, h.post.PostID, h.post.CommentID}
		if i, ok := index[k]; ok {
			if !contains(matches[i].Keywords, h.keyword) {
				matches[i].Keywords = append(matches[i].Keywords, h.keyword)
				sort.Strings(matches[i].Keywords)
			}
			continue
		}
		index[k] = len(matches)
		matches = append(matches, database.Match{
			CampaignID: campaignID,
			Platform:   h.platform,
			PostID:     h.post.PostID,
			CommentID:  h.post.CommentID,
			Content:    h.post.Content,
			AuthorName: h.post.AuthorName,
			AuthorID:   h.post.AuthorID,
			AuthorURL:  h.post.AuthorURL,
			PostURL:    h.post.PostURL,
			Keywords:   []string{h.keyword},
		})
	}
	return matches
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
