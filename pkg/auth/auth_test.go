package auth

import (
	"net/http"
	"testing"

	"github.com/fieldz/scheduler-engine/internal/testutil"
)

func TestTokenAuth(t *testing.T) {
	token := "test-token-123"
	auth := NewTokenAuth(token)

	testutil.AssertEqual(t, "bearer", auth.Type())

	ctx := testutil.Context(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", http.NoBody)
	testutil.RequireNoError(t, err)

	err = auth.Authenticate(ctx, req)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, "Bearer "+token, req.Header.Get("Authorization"))
}

func TestNoAuth(t *testing.T) {
	auth := NewNoAuth()

	testutil.AssertEqual(t, "none", auth.Type())

	ctx := testutil.Context(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", http.NoBody)
	testutil.RequireNoError(t, err)

	originalHeaders := make(http.Header)
	for key, values := range req.Header {
		originalHeaders[key] = values
	}

	err = auth.Authenticate(ctx, req)
	testutil.AssertNoError(t, err)

	for key, values := range req.Header {
		testutil.AssertEqual(t, originalHeaders[key], values)
	}
	testutil.AssertEqual(t, "", req.Header.Get("Authorization"))
}

func TestAuthProviderInterface(t *testing.T) {
	var _ Provider = &TokenAuth{}
	var _ Provider = &NoAuth{}

	providers := []Provider{
		NewTokenAuth("test-token"),
		NewNoAuth(),
	}

	for _, provider := range providers {
		authType := provider.Type()
		testutil.AssertNotNil(t, authType)

		ctx := testutil.Context(t)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", http.NoBody)
		testutil.RequireNoError(t, err)

		err = provider.Authenticate(ctx, req)
		testutil.AssertNoError(t, err)
	}
}
