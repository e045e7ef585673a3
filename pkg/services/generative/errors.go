package generative

import (
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// fallback classification for errors that carry no status code
var (
	rateLimitPatterns   = []string{"rate limit", "too many requests", "quota exceeded", "resource_exhausted"}
	unavailablePatterns = []string{"connection refused", "connection reset", "timeout", "temporary failure", "service unavailable", "internal error"}
)

// classifyError converts a provider SDK error into an *ExternalServiceError.
// The provider message stays in the wrapped error.
func classifyError(capability skilltypes.Capability, provider string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *skilltypes.ExternalServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if ctxErr := skilltypes.FromContextError(capability, err); ctxErr != nil {
		return ctxErr
	}

	var code skilltypes.ErrorCode
	if status, ok := statusCode(err); ok {
		code = codeForStatus(status)
	} else {
		code = codeForMessage(err.Error())
	}
	return skilltypes.NewExternalServiceError(capability, code, provider+" request failed", err)
}

func statusCode(err error) (int, bool) {
	var openaiAPIErr *openai.APIError
	if errors.As(err, &openaiAPIErr) {
		return openaiAPIErr.HTTPStatusCode, true
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) {
		if openaiReqErr.HTTPStatusCode == 0 {
			return http.StatusServiceUnavailable, true
		}
		return openaiReqErr.HTTPStatusCode, true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return genaiErrPtr.Code, true
	}
	return 0, false
}

func codeForStatus(status int) skilltypes.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return skilltypes.CodeUnauthorized
	case status == http.StatusNotFound:
		return skilltypes.CodeNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return skilltypes.CodeTimeout
	case status == http.StatusTooManyRequests:
		return skilltypes.CodeRateLimited
	case status >= 500 && status < 600:
		return skilltypes.CodeUnavailable
	case status >= 400 && status < 500:
		return skilltypes.CodeInvalidRequest
	}
	return skilltypes.CodeProviderError
}

func codeForMessage(msg string) skilltypes.ErrorCode {
	msg = strings.ToLower(msg)
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(msg, pattern) {
			return skilltypes.CodeRateLimited
		}
	}
	for _, pattern := range unavailablePatterns {
		if strings.Contains(msg, pattern) {
			return skilltypes.CodeUnavailable
		}
	}
	return skilltypes.CodeProviderError
}
