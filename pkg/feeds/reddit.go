package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
)

const TypeRedditListing = "reddit_listing"

// redditFetcher implements Fetcher for public Reddit "new" listings, which
// return posts newest first.
type redditFetcher struct {
	client HTTPClient
}

// NewRedditFetcher builds a Reddit listing fetcher.
func NewRedditFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &redditFetcher{client: client}
}

func (f *redditFetcher) Type() string {
	return TypeRedditListing
}

func (f *redditFetcher) Fetch(ctx context.Context, src Source, limit int) ([]domain.CandidateItem, error) {
	if !strings.EqualFold(src.Type, TypeRedditListing) {
		return nil, fmt.Errorf("reddit fetcher received incompatible source type %q", src.Type)
	}
	if strings.TrimSpace(src.SourceURL) == "" {
		return nil, fmt.Errorf("source %q source_url is empty", src.ID)
	}

	listingURL, err := buildListingURL(src.SourceURL, limit)
	if err != nil {
		return nil, fmt.Errorf("build listing url for %s: %w", src.ID, err)
	}

	raw, err := fetchBody(ctx, f.client, listingURL, src.ID, Headers(src))
	if err != nil {
		return nil, err
	}

	posts, err := parseListing(raw)
	if err != nil {
		return nil, fmt.Errorf("decode reddit listing: %w", err)
	}

	return buildCandidates(src.ID, posts), nil
}

// buildListingURL appends limit and raw_json parameters to the configured
// listing endpoint.
func buildListingURL(base string, limit int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("raw_json", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
	PostHint   string  `json:"post_hint"`
	Preview    struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
	MediaMetadata map[string]struct {
		S struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
}

func parseListing(data []byte) ([]redditPost, error) {
	var listing redditListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, err
	}
	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

// buildCandidates maps listing posts to candidate items, keeping only posts
// that carry at least one media URL. Listing order (newest first) is preserved.
func buildCandidates(sourceKey string, posts []redditPost) []domain.CandidateItem {
	items := make([]domain.CandidateItem, 0, len(posts))
	for _, post := range posts {
		id := strings.TrimSpace(post.Name)
		if id == "" {
			id = strings.TrimSpace(post.ID)
		}
		if id == "" {
			continue
		}

		urls := mediaURLs(post)
		if len(urls) == 0 {
			continue
		}

		items = append(items, domain.CandidateItem{
			SourceKey:    sourceKey,
			PostID:       id,
			Title:        strings.TrimSpace(post.Title),
			MediaURLs:    urls,
			DiscoveredAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
		})
	}
	return items
}

// mediaURLs collects the post's image URLs: a direct image link, preview
// sources, then gallery entries.
func mediaURLs(post redditPost) []string {
	var urls []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		u := strings.TrimSpace(html.UnescapeString(raw))
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	if looksLikeImageURL(post.URL) {
		add(post.URL)
	}
	for _, img := range post.Preview.Images {
		add(img.Source.URL)
	}
	for _, meta := range post.MediaMetadata {
		add(meta.S.U)
	}
	return urls
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func looksLikeImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
