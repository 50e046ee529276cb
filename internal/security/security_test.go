package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	b, _ := GenerateToken()

	if !strings.HasPrefix(a, TokenPrefix) {
		t.Errorf("token %q should have prefix %s", a, TokenPrefix)
	}
	if len(a) != len(TokenPrefix)+32 {
		t.Errorf("token length = %d", len(a))
	}
	if a == b {
		t.Error("tokens should be unique")
	}
}

func TestTokenAuth_Validate(t *testing.T) {
	auth := NewTokenAuth(" gp_secret ")

	if !auth.Enabled() {
		t.Fatal("auth should be enabled")
	}
	if err := auth.Validate("gp_secret"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	for _, bad := range []string{"", "gp_secre", "gp_secret2", "GP_SECRET"} {
		if err := auth.Validate(bad); err != ErrInvalidToken {
			t.Errorf("Validate(%q) = %v, want ErrInvalidToken", bad, err)
		}
	}

	if err := NewTokenAuth("").Validate(""); err != nil {
		t.Errorf("disabled auth should accept anything, got %v", err)
	}
}

func TestRequestToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"bearer lowercase", "bearer abc", "", "abc"},
		{"basic ignored", "Basic abc", "token=xyz", ""},
		{"query", "", "token=xyz", "xyz"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rpc?"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := RequestToken(req); got != tt.want {
				t.Errorf("RequestToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenAuth_Middleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewTokenAuth("gp_secret").Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer gp_secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("valid token: status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewTokenAuth("").Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("disabled auth: status = %d, want 204", rec.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	oc := NewOriginChecker([]string{"https://ops.example.org", "*.example.com"})

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "10.0.0.2:8780", true},
		{"http://localhost:3000", "10.0.0.2:8780", true},
		{"http://127.0.0.1:5173", "10.0.0.2:8780", true},
		{"http://10.0.0.2:8780", "10.0.0.2:8780", true},
		{"https://ops.example.org", "10.0.0.2:8780", true},
		{"https://dash.example.com", "10.0.0.2:8780", true},
		{"https://example.com", "10.0.0.2:8780", true},
		{"https://evilexample.com", "10.0.0.2:8780", false},
		{"https://evil.com", "10.0.0.2:8780", false},
		{"://bad", "10.0.0.2:8780", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := oc.CheckOrigin(req); got != tt.want {
			t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestParseTrustedProxies(t *testing.T) {
	nets, err := ParseTrustedProxies([]string{"10.0.0.1", " 192.168.0.0/16 ", "", "::1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies error: %v", err)
	}
	if len(nets) != 3 {
		t.Fatalf("got %d networks, want 3", len(nets))
	}

	if _, err := ParseTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestRequestClientIP(t *testing.T) {
	trusted, _ := ParseTrustedProxies([]string{"10.0.0.0/8"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"direct", "192.168.1.1:1234", "", "", "192.168.1.1"},
		{"untrusted forwarder", "192.168.1.1:1234", "1.2.3.4", "", "192.168.1.1"},
		{"trusted forwarder", "10.1.2.3:1234", "1.2.3.4, 10.1.2.3", "", "1.2.3.4"},
		{"trusted real ip", "10.1.2.3:1234", "", "5.6.7.8", "5.6.7.8"},
		{"trusted garbage", "10.1.2.3:1234", "garbage", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := RequestClientIP(req, trusted); got != tt.want {
				t.Errorf("RequestClientIP() = %q, want %q", got, tt.want)
			}
			if got := ClientIPExtractor(trusted)(req); got != tt.want {
				t.Errorf("ClientIPExtractor() = %q, want %q", got, tt.want)
			}
		})
	}
}
