package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry keyed by source type.
type fetcherRegistry struct {
	fetchersByType map[string]Fetcher
	mu             sync.RWMutex
}

// NewFetcherRegistry builds a registry for the provided fetcher implementations
// keyed by their source type.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByType: make(map[string]Fetcher),
	}
	for _, f := range fetchers {
		reg.register(f)
	}
	return reg
}

func (r *fetcherRegistry) register(f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(f.Type()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByType[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its type.
func (r *fetcherRegistry) FetcherFor(src Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	typeKey := strings.ToLower(strings.TrimSpace(src.Type))
	if f, ok := r.fetchersByType[typeKey]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultHTTPClient returns a tuned HTTP client for feed fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// DefaultFetcherRegistry wires up known source fetchers.
func DefaultFetcherRegistry(client HTTPClient) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return NewFetcherRegistry(
		NewRedditFetcher(client),
		NewHTMLPageFetcher(client),
	)
}

// Client resolves source keys through the registry and fetches candidates via
// the matching fetcher. It is the pipeline-facing feed surface.
type Client struct {
	registry *Registry
	fetchers FetcherRegistry
}

// NewClient builds a feed client over the loaded source registry.
func NewClient(registry *Registry, fetchers FetcherRegistry) (*Client, error) {
	if registry == nil {
		return nil, fmt.Errorf("source registry must not be nil")
	}
	if fetchers == nil {
		fetchers = DefaultFetcherRegistry(nil)
	}
	return &Client{registry: registry, fetchers: fetchers}, nil
}

// Fetch returns up to limit candidates for the source key, newest first.
func (c *Client) Fetch(ctx context.Context, sourceKey string, limit int) ([]domain.CandidateItem, error) {
	src, ok := c.registry.ByID(sourceKey)
	if !ok {
		return nil, fmt.Errorf("unknown source key %q", sourceKey)
	}

	fetcher, err := c.fetchers.FetcherFor(src)
	if err != nil {
		return nil, fmt.Errorf("resolve fetcher for source %s: %w", src.ID, err)
	}

	items, err := fetcher.Fetch(ctx, src, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", src.ID, err)
	}
	return items, nil
}
