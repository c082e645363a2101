package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := NewClient(time.Second).DoWithContext(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, userAgent, got)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, IsTransient(503))
	assert.True(t, IsTransient(429))
	assert.False(t, IsTransient(400))
	assert.True(t, IsAuthFailure(401))
	assert.True(t, IsAuthFailure(403))
	assert.False(t, IsAuthFailure(500))
}
