package llm

import "fmt"

// ProviderErrorCode represents specific narrative-provider error types.
type ProviderErrorCode string

const (
	ErrProviderUnavailable ProviderErrorCode = "PROVIDER_UNAVAILABLE"
	ErrProviderRateLimited ProviderErrorCode = "PROVIDER_RATE_LIMITED"
	ErrEmptyResponse       ProviderErrorCode = "EMPTY_RESPONSE"
	ErrMalformedResponse   ProviderErrorCode = "MALFORMED_RESPONSE"
)

// ProviderError is a structured error for narrative-provider failures.
type ProviderError struct {
	Code      ProviderErrorCode
	Message   string
	Provider  string
	Retryable bool
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}
