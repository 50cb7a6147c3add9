package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":         {err: nil, want: false},
		"rate limit":  {err: &APIError{Kind: KindRateLimit}, want: true},
		"connection":  {err: &APIError{Kind: KindConnection}, want: true},
		"generic api": {err: &APIError{Kind: KindAPI, StatusCode: 500}, want: true},
		"auth":        {err: &APIError{Kind: KindAuth}, want: false},
		"permission":  {err: &APIError{Kind: KindPermission}, want: false},
		"bad request": {err: &APIError{Kind: KindBadRequest}, want: false},
		"not found":   {err: &APIError{Kind: KindNotFound}, want: false},
		"unknown":     {err: errors.New("mystery"), want: false},
		"wrapped":     {err: fmt.Errorf("turn: %w", &APIError{Kind: KindRateLimit}), want: true},
		"cancelled":   {err: context.Canceled, want: false},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsRetriable(tc.err))
		})
	}
}

func TestDescribeError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err        error
		wantPrefix string
		wantPart   string
	}{
		"rate limit":  {err: &APIError{Kind: KindRateLimit, Message: "quota"}, wantPrefix: "Error 429:", wantPart: "Message from the provider: quota"},
		"bad request": {err: &APIError{Kind: KindBadRequest, Message: "no such model"}, wantPrefix: "Error 400: no such model", wantPart: "Check model name."},
		"auth":        {err: &APIError{Kind: KindAuth}, wantPrefix: "Error 401:", wantPart: "API_KEY"},
		"connection":  {err: &APIError{Kind: KindConnection}, wantPrefix: "No connection", wantPart: "Internet"},
		"permission":  {err: &APIError{Kind: KindPermission}, wantPrefix: "Error 403:", wantPart: "VPN"},
		"not found":   {err: &APIError{Kind: KindNotFound}, wantPrefix: "Error 404:", wantPart: "API_URL"},
		"api":         {err: &APIError{Kind: KindAPI, Message: "boom"}, wantPrefix: "Error API: boom", wantPart: "API_URL"},
		"plain":       {err: errors.New("weird"), wantPrefix: "Unknown error: weird"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := DescribeError(tc.err)
			assert.True(t, strings.HasPrefix(got, tc.wantPrefix), got)
			assert.Contains(t, got, tc.wantPart)
		})
	}

	assert.Empty(t, DescribeError(nil))
}

func TestAPIErrorMessage(t *testing.T) {
	t.Parallel()

	err := &APIError{Kind: KindNotFound, StatusCode: 404, Message: "missing"}
	assert.Equal(t, "openai: not_found (status 404): missing", err.Error())

	inner := errors.New("dial tcp: refused")
	wrapped := &APIError{Kind: KindConnection, Err: inner}
	assert.Equal(t, "openai: connection: dial tcp: refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}
