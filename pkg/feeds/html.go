package feeds

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ajbarea/aws-image-translate/internal/domain"
)

const TypeHTMLPage = "html_page"

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// htmlPageFetcher implements Fetcher for plain web pages: it extracts image
// URLs from og:image tags and <img> elements, in document order. Post IDs are
// synthesized from the image URL so rediscovered images keep a stable identity.
type htmlPageFetcher struct {
	client HTTPClient
}

// NewHTMLPageFetcher builds an HTML page fetcher.
func NewHTMLPageFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &htmlPageFetcher{client: client}
}

func (f *htmlPageFetcher) Type() string {
	return TypeHTMLPage
}

func (f *htmlPageFetcher) Fetch(ctx context.Context, src Source, limit int) ([]domain.CandidateItem, error) {
	if !strings.EqualFold(src.Type, TypeHTMLPage) {
		return nil, fmt.Errorf("html fetcher received incompatible source type %q", src.Type)
	}
	if strings.TrimSpace(src.SourceURL) == "" {
		return nil, fmt.Errorf("source %q source_url is empty", src.ID)
	}

	body, err := fetchBody(ctx, f.client, src.SourceURL, src.ID, Headers(src))
	if err != nil {
		return nil, err
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	imageURLs, err := extractImageURLs(body, src.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s page: %w", src.ID, err)
	}

	now := time.Now().UTC()
	items := make([]domain.CandidateItem, 0, len(imageURLs))
	for _, imgURL := range imageURLs {
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, domain.CandidateItem{
			SourceKey:    src.ID,
			PostID:       hashURL(imgURL),
			MediaURLs:    []string{imgURL},
			DiscoveredAt: now,
		})
	}
	return items, nil
}

// extractImageURLs pulls og:image content and img srcs from the document,
// resolving relative references against the page URL.
func extractImageURLs(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
		if val, ok := sel.Attr("content"); ok {
			add(val)
		}
	})
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if val, ok := sel.Attr("src"); ok {
			add(val)
		}
	})

	return urls, nil
}
