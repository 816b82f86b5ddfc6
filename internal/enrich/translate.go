package enrich

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"
)

// translateClient defines the minimal subset of the Translate client used by
// Translator.
type translateClient interface {
	TranslateText(ctx context.Context, params *translate.TranslateTextInput, optFns ...func(*translate.Options)) (*translate.TranslateTextOutput, error)
}

// Translator translates text between language codes via Amazon Translate.
type Translator struct {
	client translateClient
}

// NewTranslator builds a translator.
func NewTranslator(client translateClient) (*Translator, error) {
	if client == nil {
		return nil, fmt.Errorf("translate client must not be nil")
	}
	return &Translator{client: client}, nil
}

// Translate converts text from sourceLang to targetLang.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := t.client.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(sourceLang),
		TargetLanguageCode: aws.String(targetLang),
	})
	if err != nil {
		return "", classify(fmt.Errorf("translate text: %w", err))
	}
	return aws.ToString(out.TranslatedText), nil
}
