package youtrack

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStatusError_Mapping(t *testing.T) {
	cases := []struct {
		status int
		want   Code
	}{
		{400, CodeValidation},
		{401, CodeAuth},
		{403, CodeAuth},
		{404, CodeNotFound},
		{422, CodeValidation},
		{500, CodeTransport},
		{502, CodeTransport},
	}
	for _, tc := range cases {
		err := statusError(tc.status, nil)
		if err.Code != tc.want {
			t.Errorf("status %d: expected code %q, got %q", tc.status, tc.want, err.Code)
		}
		if err.Status != tc.status {
			t.Errorf("status %d: expected Status=%d, got %d", tc.status, tc.status, err.Status)
		}
	}
}

func TestStatusError_ParsesYouTrackBody(t *testing.T) {
	err := statusError(404, []byte(`{"error":"Not Found","error_description":"Entity with id X-1 not found"}`))
	if !strings.Contains(err.Message, "Not Found: Entity with id X-1 not found") {
		t.Errorf("expected parsed message, got %q", err.Message)
	}

	err = statusError(500, []byte("plain text failure"))
	if err.Message != "plain text failure" {
		t.Errorf("expected verbatim body, got %q", err.Message)
	}

	err = statusError(503, nil)
	if err.Message != "Service Unavailable" {
		t.Errorf("expected status text fallback, got %q", err.Message)
	}
}

func TestError_Format(t *testing.T) {
	withStatus := &Error{Code: CodeNotFound, Status: 404, Message: "gone"}
	if withStatus.Error() != "not_found (status 404): gone" {
		t.Errorf("unexpected format: %q", withStatus.Error())
	}

	local := NewError(CodeValidation, "filename must not be %s", "empty")
	if local.Error() != "validation_error: filename must not be empty" {
		t.Errorf("unexpected format: %q", local.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewError(CodeAuth, "rejected")); got != CodeAuth {
		t.Errorf("expected auth_error, got %q", got)
	}

	wrapped := fmt.Errorf("context: %w", NewError(CodeNotFound, "missing"))
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Errorf("expected not_found through wrapping, got %q", got)
	}

	if got := CodeOf(errors.New("plain")); got != CodeTransport {
		t.Errorf("expected transport_error for foreign error, got %q", got)
	}
}
