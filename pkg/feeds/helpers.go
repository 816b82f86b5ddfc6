package feeds

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/ajbarea/aws-image-translate/pkg/httpclient"
)

func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// ConfigString returns the trimmed string value for key from source.Config or a fallback.
func ConfigString(src Source, key, fallback string) string {
	if src.Config != nil {
		if raw, ok := src.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"

	defaultUserAgent = "aws-image-translate/1.0"
)

// Headers builds the common request headers from a source config.
func Headers(src Source) map[string]string {
	headers := map[string]string{
		"User-Agent": ConfigString(src, ConfigUserAgentKey, defaultUserAgent),
	}

	if v := ConfigString(src, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(src, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}

	return headers
}

// fetchBody performs a GET and returns the body, failing on non-200 statuses.
func fetchBody(ctx context.Context, client httpclient.Client, url, sourceID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", sourceID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s feed returned status %d body: %s", sourceID, resp.StatusCode(), responseSnippet(body))
	}
	return body, nil
}
