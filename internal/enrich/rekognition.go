package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

// rekognitionClient defines the minimal subset of the Rekognition client used
// by TextExtractor.
type rekognitionClient interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// TextExtractor extracts embedded text from stored assets via Rekognition,
// reading the object directly from the bucket the pipeline stored it in.
type TextExtractor struct {
	client rekognitionClient
	bucket string
	prefix string
}

// NewTextExtractor builds an extractor over the given bucket/prefix.
func NewTextExtractor(client rekognitionClient, bucket, prefix string) (*TextExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("rekognition client must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("text extractor requires a bucket")
	}
	return &TextExtractor{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// ExtractText returns the detected lines joined by newlines. An empty string
// with nil error means no text was found in the image.
func (e *TextExtractor) ExtractText(ctx context.Context, assetKey string) (string, error) {
	name := assetKey
	if e.prefix != "" {
		name = e.prefix + "/" + assetKey
	}

	out, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &rektypes.Image{
			S3Object: &rektypes.S3Object{
				Bucket: aws.String(e.bucket),
				Name:   aws.String(name),
			},
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("detect text: %w", err))
	}
	return joinDetectedLines(out.TextDetections), nil
}

// assetReader supplies stored asset bytes for inline detection.
type assetReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// BytesTextExtractor sends the stored asset bytes inline with the DetectText
// call instead of referencing an S3 object. Used when assets live in a local
// object store.
type BytesTextExtractor struct {
	client  rekognitionClient
	objects assetReader
}

// NewBytesTextExtractor builds an extractor that loads assets from objects.
func NewBytesTextExtractor(client rekognitionClient, objects assetReader) (*BytesTextExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("rekognition client must not be nil")
	}
	if objects == nil {
		return nil, fmt.Errorf("asset reader must not be nil")
	}
	return &BytesTextExtractor{client: client, objects: objects}, nil
}

// ExtractText returns the detected lines joined by newlines, same contract as
// TextExtractor.
func (e *BytesTextExtractor) ExtractText(ctx context.Context, assetKey string) (string, error) {
	data, err := e.objects.Get(ctx, assetKey)
	if err != nil {
		return "", pipeline.Transient(fmt.Errorf("load asset %s: %w", assetKey, err))
	}

	out, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &rektypes.Image{Bytes: data},
	})
	if err != nil {
		return "", classify(fmt.Errorf("detect text: %w", err))
	}
	return joinDetectedLines(out.TextDetections), nil
}

func joinDetectedLines(detections []rektypes.TextDetection) string {
	lines := make([]string, 0, len(detections))
	for _, det := range detections {
		if det.Type != rektypes.TextTypesLine {
			continue
		}
		if text := strings.TrimSpace(aws.ToString(det.DetectedText)); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
