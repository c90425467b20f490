// Package instagram fetches public Instagram profile data for ad contacts.
//
// Lookups go through Instagram's unauthenticated web endpoint, which is
// neither documented nor stable. Every failure degrades to placeholder data
// flagged with Fallback, so callers never see a transport error.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public web origin queried for profiles.
	DefaultBaseURL = "https://www.instagram.com"
	// DefaultCacheTTL is how long a fetched profile is served from cache.
	DefaultCacheTTL = time.Hour
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 10 * time.Second

	maxImages   = 12
	maxBodySize = 4 << 20
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// PrivateMessage is set on Profile.Error for private accounts.
	PrivateMessage  = "Profile is private"
	fallbackMessage = "Using placeholder images. Configure Instagram API for live data."
)

// Image is one recent post.
type Image struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Caption   string `json:"caption"`
	Likes     int64  `json:"likes"`
	Timestamp int64  `json:"timestamp"`
}

// Profile is the subset of a public profile exposed to clients.
type Profile struct {
	Username      string  `json:"username"`
	FullName      string  `json:"fullName,omitempty"`
	Biography     string  `json:"biography,omitempty"`
	ProfilePicURL string  `json:"profilePicUrl,omitempty"`
	IsPublic      bool    `json:"isPublic"`
	Followers     int64   `json:"followers"`
	Images        []Image `json:"images"`
	Error         string  `json:"error,omitempty"`
	Fallback      bool    `json:"fallback,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Client   *http.Client
}

type cached struct {
	profile Profile
	at      time.Time
}

// Fetcher retrieves profiles and caches them per lower-cased username.
type Fetcher struct {
	client *http.Client
	base   string
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

// NewFetcher constructs a Fetcher.
func NewFetcher(opts Options, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client: client,
		base:   strings.TrimRight(opts.BaseURL, "/"),
		ttl:    opts.CacheTTL,
		log:    log,
		now:    time.Now,
		cache:  map[string]cached{},
	}
}

// FetchProfile returns the profile for username. With force the cache is
// bypassed and the fresh result replaces the cached one. Fallback data is
// never cached.
func (f *Fetcher) FetchProfile(ctx context.Context, username string, force bool) Profile {
	key := strings.ToLower(username)
	if !force {
		f.mu.Lock()
		c, ok := f.cache[key]
		f.mu.Unlock()
		if ok && f.now().Sub(c.at) < f.ttl {
			return c.profile
		}
	}

	p, err := f.fetch(ctx, username)
	if err != nil {
		f.log.Warn("instagram fetch failed, using placeholder data",
			zap.String("username", username), zap.Error(err))
		return fallback(username, f.now())
	}

	f.mu.Lock()
	f.cache[key] = cached{profile: p, at: f.now()}
	f.mu.Unlock()
	return p
}

// ClearCache drops the cached profile for username, or every profile when
// username is empty.
func (f *Fetcher) ClearCache(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if username == "" {
		f.cache = map[string]cached{}
		return
	}
	delete(f.cache, strings.ToLower(username))
}

func (f *Fetcher) fetch(ctx context.Context, username string) (Profile, error) {
	u := fmt.Sprintf("%s/%s/?__a=1&__d=dis", f.base, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("decode: %w", err)
	}
	usr := body.User
	if body.GraphQL != nil && body.GraphQL.User != nil {
		usr = body.GraphQL.User
	}
	if usr == nil {
		return Profile{}, fmt.Errorf("no user in response")
	}
	return usr.profile(username), nil
}

type apiResponse struct {
	GraphQL *struct {
		User *apiUser `json:"user"`
	} `json:"graphql"`
	User *apiUser `json:"user"`
}

type apiCount struct {
	Count int64 `json:"count"`
}

type apiUser struct {
	Username       string   `json:"username"`
	FullName       string   `json:"full_name"`
	Biography      string   `json:"biography"`
	ProfilePicURL  string   `json:"profile_pic_url"`
	IsPrivate      bool     `json:"is_private"`
	EdgeFollowedBy apiCount `json:"edge_followed_by"`
	Media          struct {
		Edges []struct {
			Node apiNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_owner_to_timeline_media"`
}

type apiNode struct {
	ID           string `json:"id"`
	DisplayURL   string `json:"display_url"`
	ThumbnailSrc string `json:"thumbnail_src"`
	Caption      struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	LikedBy apiCount `json:"edge_liked_by"`
	TakenAt int64    `json:"taken_at_timestamp"`
}

func (u *apiUser) profile(requested string) Profile {
	if u.IsPrivate {
		return Profile{Username: requested, IsPublic: false, Images: []Image{}, Error: PrivateMessage}
	}
	images := make([]Image, 0, maxImages)
	for _, e := range u.Media.Edges {
		if len(images) == maxImages {
			break
		}
		n := e.Node
		img := Image{
			ID:        n.ID,
			URL:       n.DisplayURL,
			Thumbnail: n.ThumbnailSrc,
			Likes:     n.LikedBy.Count,
			Timestamp: n.TakenAt,
		}
		if len(n.Caption.Edges) > 0 {
			img.Caption = n.Caption.Edges[0].Node.Text
		}
		images = append(images, img)
	}
	name := u.Username
	if name == "" {
		name = requested
	}
	return Profile{
		Username:      name,
		FullName:      u.FullName,
		Biography:     u.Biography,
		ProfilePicURL: u.ProfilePicURL,
		IsPublic:      true,
		Followers:     u.EdgeFollowedBy.Count,
		Images:        images,
	}
}

var placeholderColors = []string{"e94560", "d4af37", "16213e"}

func fallback(username string, now time.Time) Profile {
	images := make([]Image, 0, len(placeholderColors))
	text := url.QueryEscape(username)
	for i, color := range placeholderColors {
		n := i + 1
		images = append(images, Image{
			ID:        fmt.Sprintf("sample%d", n),
			URL:       fmt.Sprintf("https://via.placeholder.com/400x400/%s/ffffff?text=%s+%d", color, text, n),
			Thumbnail: fmt.Sprintf("https://via.placeholder.com/200x200/%s/ffffff?text=%s+%d", color, text, n),
			Caption:   fmt.Sprintf("Sample Instagram post %d", n),
			Timestamp: now.Unix(),
		})
	}
	return Profile{
		Username: username,
		IsPublic: true,
		Images:   images,
		Fallback: true,
		Message:  fallbackMessage,
	}
}
