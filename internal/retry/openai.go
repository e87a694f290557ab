package retry

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// FromOpenAI classifies an error returned by the go-openai client by HTTP
// status. 429 is rate limiting; 500, 502, 503 and 504 or a server_error type
// are treated as an unavailable remote.
func FromOpenAI(err error) error {
	if err == nil {
		return nil
	}
	return Wrap(openAIKind(err), err)
}

func openAIKind(err error) Kind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type == "server_error" {
			return KindUnavailable
		}
		return statusKind(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusKind(reqErr.HTTPStatusCode)
	}

	return KindPermanent
}

func statusKind(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindPermanent
	}
}
