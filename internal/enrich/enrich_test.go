package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comptypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/aws-sdk-go-v2/service/translate"
	"github.com/aws/smithy-go"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

type fakeRekognitionClient struct {
	out   *rekognition.DetectTextOutput
	err   error
	input *rekognition.DetectTextInput
}

func (f *fakeRekognitionClient) DetectText(_ context.Context, params *rekognition.DetectTextInput, _ ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	f.input = params
	return f.out, f.err
}

type fakeComprehendClient struct {
	out *comprehend.DetectDominantLanguageOutput
	err error
}

func (f *fakeComprehendClient) DetectDominantLanguage(_ context.Context, _ *comprehend.DetectDominantLanguageInput, _ ...func(*comprehend.Options)) (*comprehend.DetectDominantLanguageOutput, error) {
	return f.out, f.err
}

type fakeTranslateClient struct {
	out   *translate.TranslateTextOutput
	err   error
	input *translate.TranslateTextInput
}

func (f *fakeTranslateClient) TranslateText(_ context.Context, params *translate.TranslateTextInput, _ ...func(*translate.Options)) (*translate.TranslateTextOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestExtractTextJoinsLineDetections(t *testing.T) {
	client := &fakeRekognitionClient{out: &rekognition.DetectTextOutput{
		TextDetections: []rektypes.TextDetection{
			{Type: rektypes.TextTypesLine, DetectedText: aws.String("HOLA")},
			{Type: rektypes.TextTypesWord, DetectedText: aws.String("HOLA")},
			{Type: rektypes.TextTypesLine, DetectedText: aws.String("  MUNDO  ")},
			{Type: rektypes.TextTypesLine, DetectedText: aws.String("")},
		},
	}}
	ex, err := NewTextExtractor(client, "media-bucket", "assets/")
	if err != nil {
		t.Fatalf("NewTextExtractor: %v", err)
	}

	text, err := ex.ExtractText(context.Background(), "p/abc.jpg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "HOLA\nMUNDO" {
		t.Fatalf("text = %q", text)
	}

	obj := client.input.Image.S3Object
	if aws.ToString(obj.Bucket) != "media-bucket" || aws.ToString(obj.Name) != "assets/p/abc.jpg" {
		t.Fatalf("unexpected s3 object: %s/%s", aws.ToString(obj.Bucket), aws.ToString(obj.Name))
	}
}

type fakeAssetReader struct {
	data map[string][]byte
}

func (f *fakeAssetReader) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return data, nil
}

func TestBytesExtractorSendsAssetInline(t *testing.T) {
	client := &fakeRekognitionClient{out: &rekognition.DetectTextOutput{
		TextDetections: []rektypes.TextDetection{
			{Type: rektypes.TextTypesLine, DetectedText: aws.String("BONJOUR")},
		},
	}}
	reader := &fakeAssetReader{data: map[string][]byte{"p/abc.jpg": []byte("jpegdata")}}
	ex, err := NewBytesTextExtractor(client, reader)
	if err != nil {
		t.Fatalf("NewBytesTextExtractor: %v", err)
	}

	text, err := ex.ExtractText(context.Background(), "p/abc.jpg")
	if err != nil || text != "BONJOUR" {
		t.Fatalf("ExtractText = (%q, %v)", text, err)
	}
	if string(client.input.Image.Bytes) != "jpegdata" {
		t.Fatalf("asset bytes not sent inline")
	}

	if _, err := ex.ExtractText(context.Background(), "p/missing.jpg"); err == nil {
		t.Fatalf("expected error for missing asset")
	}
}

func TestExtractTextEmptyDetectionsIsNotAnError(t *testing.T) {
	client := &fakeRekognitionClient{out: &rekognition.DetectTextOutput{}}
	ex, _ := NewTextExtractor(client, "media-bucket", "")

	text, err := ex.ExtractText(context.Background(), "p/abc.jpg")
	if err != nil || text != "" {
		t.Fatalf("ExtractText = (%q, %v)", text, err)
	}
}

func TestDetectLanguagePicksHighestScore(t *testing.T) {
	client := &fakeComprehendClient{out: &comprehend.DetectDominantLanguageOutput{
		Languages: []comptypes.DominantLanguage{
			{LanguageCode: aws.String("fr"), Score: aws.Float32(0.12)},
			{LanguageCode: aws.String("es"), Score: aws.Float32(0.87)},
			{LanguageCode: aws.String("pt"), Score: aws.Float32(0.45)},
		},
	}}
	det, err := NewLanguageDetector(client)
	if err != nil {
		t.Fatalf("NewLanguageDetector: %v", err)
	}

	lang, err := det.DetectLanguage(context.Background(), "hola mundo")
	if err != nil || lang != "es" {
		t.Fatalf("DetectLanguage = (%q, %v)", lang, err)
	}
}

func TestDetectLanguageNoResultIsPermanent(t *testing.T) {
	client := &fakeComprehendClient{out: &comprehend.DetectDominantLanguageOutput{}}
	det, _ := NewLanguageDetector(client)

	_, err := det.DetectLanguage(context.Background(), "???")
	if !pipeline.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestTranslatePassesLanguagePair(t *testing.T) {
	client := &fakeTranslateClient{out: &translate.TranslateTextOutput{
		TranslatedText: aws.String("hello world"),
	}}
	tr, err := NewTranslator(client)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	got, err := tr.Translate(context.Background(), "hola mundo", "es", "en")
	if err != nil || got != "hello world" {
		t.Fatalf("Translate = (%q, %v)", got, err)
	}
	in := client.input
	if aws.ToString(in.SourceLanguageCode) != "es" || aws.ToString(in.TargetLanguageCode) != "en" {
		t.Fatalf("language pair = %s->%s", aws.ToString(in.SourceLanguageCode), aws.ToString(in.TargetLanguageCode))
	}
}

func TestClassifyMapsProviderCodes(t *testing.T) {
	throttle := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	if pipeline.IsPermanent(classify(throttle)) {
		t.Fatalf("throttling must stay transient")
	}

	reject := &smithy.GenericAPIError{Code: "InvalidImageFormatException", Message: "not an image"}
	if !pipeline.IsPermanent(classify(reject)) {
		t.Fatalf("invalid image format must be permanent")
	}

	unknown := errors.New("read: connection reset by peer")
	if pipeline.IsPermanent(classify(unknown)) {
		t.Fatalf("unknown errors default to transient")
	}

	if classify(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestClassifySeesWrappedAPIErrors(t *testing.T) {
	ex, _ := NewTextExtractor(&fakeRekognitionClient{
		err: &smithy.GenericAPIError{Code: "InvalidS3ObjectException", Message: "no such key"},
	}, "media-bucket", "")

	_, err := ex.ExtractText(context.Background(), "p/missing.jpg")
	if !pipeline.IsPermanent(err) {
		t.Fatalf("wrapped provider rejection must be permanent, got %v", err)
	}
}
