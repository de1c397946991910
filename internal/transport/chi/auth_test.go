package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authTestHandler(apiKeys []string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(apiKeys)(ok)
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		apiKeys    []string
		path       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "no keys configured passes through",
			apiKeys:    nil,
			path:       "/search",
			wantStatus: http.StatusOK,
		},
		{
			name:       "only empty keys configured passes through",
			apiKeys:    []string{"", ""},
			path:       "/search",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid token",
			apiKeys:    []string{"secret-1", "secret-2"},
			path:       "/search",
			authHeader: "Bearer secret-2",
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid token",
			apiKeys:    []string{"secret-1"},
			path:       "/search",
			authHeader: "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			apiKeys:    []string{"secret-1"},
			path:       "/search",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			apiKeys:    []string{"secret-1"},
			path:       "/search",
			authHeader: "Basic secret-1",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "healthz exempt",
			apiKeys:    []string{"secret-1"},
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "metrics exempt",
			apiKeys:    []string{"secret-1"},
			path:       "/metrics",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			authTestHandler(tt.apiKeys).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
