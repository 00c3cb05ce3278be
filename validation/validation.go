// Package validation performs request-level checks that must pass
// before a job touches the filesystem.
package validation

import (
	"fmt"
	"strings"

	"vidscribe/errors"
	"vidscribe/whisper"
)

// Languages is the supported transcription language catalog.
var Languages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ru": "Russian",
	"ar": "Arabic",
	"pt": "Portuguese",
}

// ValidateModel rejects identifiers outside the fixed model set.
func ValidateModel(model string) error {
	const op = "validation.ValidateModel"

	if !whisper.IsValidModel(model) {
		return errors.InvalidInput(op, nil, fmt.Sprintf("Invalid model: %s", model))
	}
	return nil
}

// NormalizeLanguage falls back to the configured default when the
// caller supplied nothing.
func NormalizeLanguage(lang, defaultLang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return defaultLang
	}
	return lang
}

// ValidateCaptionsFilename requires the captions upload to be JSON.
func ValidateCaptionsFilename(filename string) error {
	const op = "validation.ValidateCaptionsFilename"

	if filename == "" || !strings.HasSuffix(strings.ToLower(filename), ".json") {
		return errors.InvalidInput(op, nil, "Captions must be a JSON file.")
	}
	return nil
}
