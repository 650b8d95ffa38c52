package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"autoxdcc/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRemote, "source", "fetch", "status 503", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"source", "fetch", "status 503"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrTransient, "source", "fetch", "reset", nil), true},
		{services.Wrap(services.ErrTimeout, "source", "fetch", "deadline", nil), true},
		{services.Wrap(services.ErrRemote, "source", "fetch", "404", nil), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		nil: http.StatusOK,
		services.Wrap(services.ErrNotFound, "workflow", "reset", "unknown packlist", nil): http.StatusNotFound,
		services.Wrap(services.ErrValidation, "api", "show", "missing name", nil):         http.StatusBadRequest,
		services.Wrap(services.ErrTimeout, "source", "list", "no answer", nil):            http.StatusGatewayTimeout,
		services.Wrap(services.ErrRemote, "source", "fetch", "500", nil):                  http.StatusBadGateway,
		errors.New("unclassified"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := services.HTTPStatus(err); got != want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
