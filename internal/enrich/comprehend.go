package enrich

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

// comprehendClient defines the minimal subset of the Comprehend client used
// by LanguageDetector.
type comprehendClient interface {
	DetectDominantLanguage(ctx context.Context, params *comprehend.DetectDominantLanguageInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectDominantLanguageOutput, error)
}

// LanguageDetector identifies the dominant language of text via Comprehend.
type LanguageDetector struct {
	client comprehendClient
}

// NewLanguageDetector builds a detector.
func NewLanguageDetector(client comprehendClient) (*LanguageDetector, error) {
	if client == nil {
		return nil, fmt.Errorf("comprehend client must not be nil")
	}
	return &LanguageDetector{client: client}, nil
}

// DetectLanguage returns the highest-confidence language code for text. The
// pipeline never calls this with empty text; detection on empty input is
// skipped upstream rather than attempted.
func (d *LanguageDetector) DetectLanguage(ctx context.Context, text string) (string, error) {
	out, err := d.client.DetectDominantLanguage(ctx, &comprehend.DetectDominantLanguageInput{
		Text: aws.String(text),
	})
	if err != nil {
		return "", classify(fmt.Errorf("detect dominant language: %w", err))
	}

	best := ""
	bestScore := float32(-1)
	for _, lang := range out.Languages {
		score := aws.ToFloat32(lang.Score)
		if score > bestScore && aws.ToString(lang.LanguageCode) != "" {
			best = aws.ToString(lang.LanguageCode)
			bestScore = score
		}
	}
	if best == "" {
		return "", pipeline.Permanent(fmt.Errorf("no dominant language detected"))
	}
	return best, nil
}
