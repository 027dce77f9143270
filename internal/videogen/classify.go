package videogen

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind buckets upstream failures.
type Kind int

const (
	KindOther Kind = iota
	KindQuotaExceeded
	KindModelUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindModelUnavailable:
		return "model_unavailable"
	default:
		return "other"
	}
}

var (
	quotaMarkers    = []string{"RESOURCE_EXHAUSTED", "rate-limit", "429"}
	notFoundMarkers = []string{"NOT_FOUND", "is not found"}
)

// Classify maps an error onto a Kind. Structured upstream errors are inspected first;
// anything else falls back to matching the vendor's error text.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Kind()
	}

	if kind, ok := classifyStructured(err); ok {
		return kind
	}

	return classifyText(err.Error())
}

func classifyStructured(err error) (Kind, bool) {
	var (
		code   int
		status string
		found  bool
	)

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	var opErr *OperationError
	switch {
	case errors.As(err, &apiErr):
		code, status, found = apiErr.Code, apiErr.Status, true
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, found = apiErrPtr.Code, apiErrPtr.Status, true
	case errors.As(err, &opErr):
		code, status, found = opErr.Code, opErr.Status, true
	}
	if !found {
		return KindOther, false
	}

	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return KindQuotaExceeded, true
	case code == http.StatusNotFound || status == "NOT_FOUND":
		return KindModelUnavailable, true
	}

	// A structured error we cannot bucket may still carry a marker in its message.
	return KindOther, false
}

func classifyText(msg string) Kind {
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return KindQuotaExceeded
		}
	}
	for _, marker := range notFoundMarkers {
		if strings.Contains(msg, marker) {
			return KindModelUnavailable
		}
	}
	return KindOther
}
