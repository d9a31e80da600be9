package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid input", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"index not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFetchError(t *testing.T) {
	err := fmt.Errorf("worker: %w", NewFetchError("https://a.de/x", KindStatus, 404, ErrHTTPStatus))
	if !errors.Is(err, ErrHTTPStatus) {
		t.Error("FetchError should unwrap to its cause")
	}
	if KindOf(err) != KindStatus {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(ErrHTTPStatus) != "" {
		t.Error("plain error has no kind")
	}
	want := "status https://a.de/x (status 404): unexpected http status"
	var fe *FetchError
	errors.As(err, &fe)
	if fe.Error() != want {
		t.Errorf("Error() = %q, want %q", fe.Error(), want)
	}
}
