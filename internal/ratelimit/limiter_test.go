package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheck_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Cooldown:         10 * time.Second,
		MaxPlayerPerHour: 5,
		MaxIPPerHour:     20,
		Clock:            clock,
	})
	defer limiter.Close()

	if result := limiter.Allow(7, "203.0.113.9"); !result.Allowed {
		t.Fatalf("first attempt blocked: %s", result.Reason)
	}

	clock.Advance(4 * time.Second)
	result := limiter.Check(7, "203.0.113.9")
	if result.Allowed || result.Reason != "cooldown" {
		t.Fatalf("expected cooldown, got %+v", result)
	}
	if result.RetryAfter != 6*time.Second {
		t.Errorf("RetryAfter = %v, want 6s", result.RetryAfter)
	}

	// Another player behind the same IP is unaffected.
	if result := limiter.Check(8, "203.0.113.9"); !result.Allowed {
		t.Fatalf("other player blocked: %s", result.Reason)
	}

	clock.Advance(7 * time.Second)
	if result := limiter.Check(7, "203.0.113.9"); !result.Allowed {
		t.Fatalf("attempt after cooldown blocked: %s", result.Reason)
	}
}

func TestCheck_PlayerHourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Cooldown:         time.Millisecond,
		MaxPlayerPerHour: 3,
		MaxIPPerHour:     100,
		Clock:            clock,
	})
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if result := limiter.Allow(1, "198.51.100.1"); !result.Allowed {
			t.Fatalf("attempt %d blocked: %s", i+1, result.Reason)
		}
		clock.Advance(time.Second)
	}

	result := limiter.Check(1, "198.51.100.1")
	if result.Allowed || result.Reason != "player_hourly_limit" {
		t.Fatalf("expected player_hourly_limit, got %+v", result)
	}

	clock.Advance(time.Hour)
	if result := limiter.Check(1, "198.51.100.1"); !result.Allowed {
		t.Fatalf("window should have reset: %s", result.Reason)
	}
}

func TestCheck_IPHourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Cooldown:         time.Millisecond,
		MaxPlayerPerHour: 100,
		MaxIPPerHour:     3,
		Clock:            clock,
	})
	defer limiter.Close()

	for id := int64(1); id <= 3; id++ {
		if result := limiter.Allow(id, "198.51.100.7"); !result.Allowed {
			t.Fatalf("player %d blocked: %s", id, result.Reason)
		}
	}

	result := limiter.Check(4, "198.51.100.7")
	if result.Allowed || result.Reason != "ip_hourly_limit" {
		t.Fatalf("expected ip_hourly_limit, got %+v", result)
	}
	if result := limiter.Check(4, "198.51.100.8"); !result.Allowed {
		t.Fatalf("different IP blocked: %s", result.Reason)
	}
}

func TestCheckDoesNotRecord(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		Cooldown:         time.Minute,
		MaxPlayerPerHour: 1,
		MaxIPPerHour:     100,
		Clock:            clock,
	})
	defer limiter.Close()

	for i := 0; i < 10; i++ {
		if result := limiter.Check(3, "192.0.2.1"); !result.Allowed {
			t.Fatalf("check %d should be allowed without a recorded attempt", i+1)
		}
	}

	limiter.Record(3, "192.0.2.1")
	if result := limiter.Check(3, "192.0.2.1"); result.Allowed {
		t.Fatal("check after record should be blocked")
	}
}

func TestCleanupDropsStaleEntries(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{Cooldown: time.Second, MaxPlayerPerHour: 5, MaxIPPerHour: 5, Clock: clock})
	defer limiter.Close()

	limiter.Record(1, "192.0.2.1")
	limiter.Record(2, "192.0.2.2")
	clock.Advance(2 * time.Hour)
	limiter.Record(3, "192.0.2.3")

	limiter.cleanup()
	players, ips := limiter.size()
	if players != 1 || ips != 1 {
		t.Fatalf("expected 1 player and 1 ip after cleanup, got %d and %d", players, ips)
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	if limiter.config.MaxPlayerPerHour != DefaultConfig().MaxPlayerPerHour {
		t.Fatalf("expected default config, got %+v", limiter.config)
	}
	if result := limiter.Allow(1, "192.0.2.1"); !result.Allowed {
		t.Fatalf("first attempt blocked: %s", result.Reason)
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(&Config{
		Cooldown:         time.Nanosecond,
		MaxPlayerPerHour: 1000,
		MaxIPPerHour:     1000,
		Clock:            newMockClock(),
	})
	defer limiter.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				limiter.Allow(id%5, "192.0.2.10")
			}
		}(int64(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			limiter.cleanup()
		}
	}()
	wg.Wait()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "trusted proxy uses rightmost public XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50",
		},
		{
			name:       "trusted proxy with all private XFF",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1",
		},
		{
			name:       "trusted proxy X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "untrusted ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.100",
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"fc00::1", true},
		{"fe80::1", true},
		{"::ffff:10.0.0.1", true},
		{"::ffff:8.8.8.8", false},
		{"203.0.113.50", false},
		{"2001:4860:4860::8888", false},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivateIP(tt.ip); got != tt.expected {
				t.Errorf("isPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}
