package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"trackhub-backend/internal/models"
)

// fakeCache counts increments in memory; TTLs are ignored.
type fakeCache struct {
	counts map[string]int64
	failed bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int64)}
}

func (f *fakeCache) IncrWithTTL(key string, ttl time.Duration) (int64, error) {
	if f.failed {
		return 0, redis.ErrClosed
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCache) GetProjectMeta(orgID, projectID string) (*models.ProjectMeta, error) {
	return nil, nil
}
func (f *fakeCache) SetProjectMeta(meta *models.ProjectMeta) error { return nil }
func (f *fakeCache) InvalidateProjectMeta(orgID, projectID string) error { return nil }
func (f *fakeCache) SetLastSeen(integrationID string, tsMs int64, ttlSeconds int) error {
	return nil
}
func (f *fakeCache) GetLastSeen(integrationID string) (int64, error) { return 0, nil }
func (f *fakeCache) SetStatus(integrationID string, status string) error { return nil }
func (f *fakeCache) SubscribeExpired() (*redis.PubSub, error) { return nil, nil }
func (f *fakeCache) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitLogin(t *testing.T) {
	fc := newFakeCache()
	handler := RateLimitLogin(fc)(okHandler())

	for i := 0; i < loginLimit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit status = %d, want 429", rec.Code)
	}

	// A different IP has its own counter.
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh ip status = %d, want 200", rec.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	fc := newFakeCache()
	fc.failed = true
	handler := RateLimitLogin(fc)(okHandler())

	for i := 0; i < loginLimit*3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 when cache is down", i+1, rec.Code)
		}
	}
}

func TestRateLimitEnrollTokenKeyedByPrefix(t *testing.T) {
	fc := newFakeCache()
	handler := RateLimitEnrollToken(fc)(okHandler())

	token := "thb_et_abcd1234567890"
	for i := 0; i < enrollTokenLimit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/integrations/enroll", nil)
		req.Header.Set("X-Enrollment-Token", token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/integrations/enroll", nil)
	req.Header.Set("X-Enrollment-Token", token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit status = %d, want 429", rec.Code)
	}

	// Missing token is not limited here; the enrollment handler rejects it.
	req = httptest.NewRequest(http.MethodPost, "/v1/integrations/enroll", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("no-token status = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr", "192.168.1.5:9999", "", "", "192.168.1.5"},
		{"x-forwarded-for", "10.0.0.1:80", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:80", "", "203.0.113.9", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
