package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrIndexNotReady      = errors.New("index not loaded")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrHTTPStatus         = errors.New("unexpected http status")
	ErrNotHTML            = errors.New("content is not html")
	ErrDecodeFailed       = errors.New("could not decode page")
	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrNormalizerRejected = errors.New("rejected by normalizer")
	ErrNoExtractableText  = errors.New("no extractable text")
	ErrCorruptState       = errors.New("corrupt persisted state")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// FetchKind classifies why a page could not be turned into a document.
type FetchKind string

const (
	KindNetwork    FetchKind = "network"
	KindStatus     FetchKind = "status"
	KindNotHTML    FetchKind = "not_html"
	KindDecode     FetchKind = "decode"
	KindRobots     FetchKind = "robots"
	KindNormalizer FetchKind = "normalizer"
	KindNoText     FetchKind = "no_text"
)

// FetchError is the explicit failure outcome of processing one URL. The
// crawler logs it and drops the URL; nothing retries it.
type FetchError struct {
	URL        string
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err for url under the given kind.
func NewFetchError(url string, kind FetchKind, statusCode int, err error) *FetchError {
	return &FetchError{URL: url, Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf returns the FetchKind carried by err, or "" if err is not a
// FetchError.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
