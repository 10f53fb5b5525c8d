package openai

import "errors"

var (
	// ErrGenerationFailed wraps errors returned by the chat completion API.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)
