package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_AnyMethodAndPath(t *testing.T) {
	e := NewEcho()

	tests := []struct {
		method string
		target string
		body   io.Reader
	}{
		{http.MethodGet, "/", nil},
		{http.MethodGet, "/health", nil},
		{http.MethodPost, "/deep/nested/path?x=1", strings.NewReader("ignored")},
		{http.MethodPut, "/anything", nil},
		{http.MethodDelete, "/", nil},
		{http.MethodOptions, "/x", nil},
		{"BREW", "/pot", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, tt.body)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
			assert.Equal(t, "Healthy", rec.Body.String())
		})
	}
}

func TestHealth_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(NewEcho())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Healthy", string(body))
}
