package enrich

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

// Package enrich adapts the three external recognition capabilities —
// text extraction, language detection, translation — to the pipeline's
// interfaces, mapping provider errors onto the shared retry taxonomy.

// throttleCodes are provider error codes worth retrying.
var throttleCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"TooManyRequestsException":               {},
	"RequestLimitExceeded":                   {},
	"LimitExceededException":                 {},
	"ProvisionedThroughputExceededException": {},
	"ServiceUnavailableException":            {},
	"InternalServerError":                    {},
}

// rejectCodes are provider error codes that will never succeed on retry.
var rejectCodes = map[string]struct{}{
	"InvalidParameterException":               {},
	"InvalidImageFormatException":             {},
	"ImageTooLargeException":                  {},
	"InvalidS3ObjectException":                {},
	"ValidationException":                     {},
	"TextSizeLimitExceededException":          {},
	"UnsupportedLanguagePairException":        {},
	"DetectedLanguageLowConfidenceException":  {},
	"UnsupportedDisplayLanguageCodeException": {},
}

// classify wraps a provider error as transient or permanent. Unrecognized
// errors stay transient so the retry policy gets a chance at network blips.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := rejectCodes[code]; ok {
			return pipeline.Permanent(err)
		}
		if _, ok := throttleCodes[code]; ok {
			return pipeline.Transient(err)
		}
	}
	return pipeline.Transient(err)
}
