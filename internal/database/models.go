package database

import (
	"fmt"
	"time"
)

// Platform identifies a supported social platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformWeb       Platform = "web"
)

// AllPlatforms returns the supported platform identifiers.
func AllPlatforms() []Platform {
	return []Platform{PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformWeb}
}

// ParsePlatform validates a platform identifier string.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformWeb:
		return p, nil
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// MatchStatus is the engagement lifecycle state of a match.
// A match starts pending and ends in exactly one terminal state.
type MatchStatus string

const (
	StatusPending MatchStatus = "pending"
	StatusEngaged MatchStatus = "engaged"
	StatusSkipped MatchStatus = "skipped"
	StatusFailed  MatchStatus = "failed"
)

// EngagementConfig controls how automated replies are drafted.
type EngagementConfig struct {
	Personality        string `json:"personality"`
	ResponseStyle      string `json:"response_style"`
	MaxResponseLength  int    `json:"max_response_length"`
	IncludeCTA         bool   `json:"include_cta"`
	CustomInstructions string `json:"custom_instructions"`
}

// Normalize applies defaults and validates bounds. Called where the
// config is constructed (campaign create, engagement start), not at
// read sites.
func (c *EngagementConfig) Normalize() error {
	if c.Personality == "" {
		c.Personality = "friendly"
	}
	if c.ResponseStyle == "" {
		c.ResponseStyle = "helpful"
	}
	if c.MaxResponseLength < 0 {
		return fmt.Errorf("max_response_length must not be negative")
	}
	if c.MaxResponseLength == 0 {
		c.MaxResponseLength = 280
	}
	if c.MaxResponseLength > 2000 {
		return fmt.Errorf("max_response_length must be at most 2000")
	}
	return nil
}

// Campaign is a keyword monitoring configuration owned by a user.
type Campaign struct {
	ID                  int64
	UserID              int64
	BusinessName        string
	BusinessDescription string
	Keywords            []string
	Platforms           []Platform
	IsActive            bool
	AutoEngage          bool
	Engagement          EngagementConfig
	LastScannedAt       *time.Time
	CreatedAt           *string
	UpdatedAt           *string
}

// Match is one piece of external content that matched a campaign keyword.
// The tuple (campaign, platform, post, comment) is unique; re-scanning
// never creates a second row.
type Match struct {
	ID           int64
	CampaignID   int64
	Platform     Platform
	PostID       string
	CommentID    string // empty when the match is a top-level post
	Content      string
	AuthorName   string
	AuthorID     string
	AuthorURL    string
	PostURL      string
	Keywords     []string
	Status       MatchStatus
	Sentiment    *float64
	ResponseText *string
	ResponseID   *string
	Note         *string
	DiscoveredAt time.Time
	EngagedAt    *time.Time
}

// EngagementLog is an immutable audit record of one successful reply.
type EngagementLog struct {
	ID           string
	CampaignID   int64
	MatchID      int64
	Platform     Platform
	ResponseText string
	ResponseID   string
	Outcome      string
	CreatedAt    *string
}

// SocialAccount is a per-user, per-platform credential record. This
// subsystem reads tokens; it never rotates them.
type SocialAccount struct {
	ID          int64
	UserID      int64
	Platform    Platform
	AccountName string
	AccessToken string
	IsActive    bool
	CreatedAt   *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalCampaigns  int
	ActiveCampaigns int
	TotalMatches    int
	PendingMatches  int
	EngagedMatches  int
	EngagementLogs  int
	SocialAccounts  int
}
