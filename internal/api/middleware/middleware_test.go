package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

// ============ APIKeyAuth ============

func TestAPIKeyAuth(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"
	hash, err := crypto.HashAPIKey(key, 4)
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}

	tests := []struct {
		name   string
		hash   string
		method string
		key    string
		want   int
	}{
		{"disabled without hash", "", http.MethodGet, "", http.StatusOK},
		{"valid key", hash, http.MethodGet, key, http.StatusOK},
		{"missing key", hash, http.MethodGet, "", http.StatusUnauthorized},
		{"wrong key", hash, http.MethodPost, "nope", http.StatusUnauthorized},
		{"preflight passes", hash, http.MethodOptions, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.hash, utils.NewNopLogger())(okHandler)

			req := httptest.NewRequest(tt.method, "/api/v1/trading/status", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// ============ CORS ============

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.example.com"})(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "https://dash.example.com", http.StatusOK, "https://dash.example.com"},
		{"foreign origin", http.MethodGet, "https://evil.example.com", http.StatusOK, ""},
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "https://dash.example.com", http.StatusNoContent, "https://dash.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/trading/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORS_AllowAll(t *testing.T) {
	h := CORS(nil)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// ============ Recovery / Logging ============

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Recovery(utils.NewNopLogger())(panicky)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	var captured *responseWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})
	h := Logging(utils.NewNopLogger())(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if captured.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d", captured.statusCode)
	}
	if captured.written != int64(len("short and stout")) {
		t.Errorf("written = %d", captured.written)
	}
}
