// Package ratelimit throttles public game registrations per player and per
// client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Cooldown         time.Duration // Minimum time between attempts by one player
	MaxPlayerPerHour int           // Attempts per player per hour
	MaxIPPerHour     int           // Attempts per client IP per hour
	CleanupInterval  time.Duration // How often stale entries are dropped
	Clock            Clock         // nil uses real time
}

// DefaultConfig allows a handful of retries per player and enough per IP
// for a club sharing one connection at the pitch.
func DefaultConfig() *Config {
	return &Config{
		Cooldown:         5 * time.Second,
		MaxPlayerPerHour: 10,
		MaxIPPerHour:     60,
		CleanupInterval:  5 * time.Minute,
	}
}

type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

type entry struct {
	count   int
	firstAt time.Time // First attempt in window
	lastAt  time.Time // Most recent attempt
}

// Limiter tracks registration attempts in fixed one-hour windows.
type Limiter struct {
	config   *Config
	clock    Clock
	mu       sync.RWMutex
	byPlayer map[string]*entry
	byIP     map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byPlayer:      make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Check reports whether a registration attempt is allowed. It does not
// record the attempt.
func (l *Limiter) Check(playerID int64, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	playerKey := playerKey(playerID)
	ipKey := l.hashKey("ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.byPlayer[playerKey]; e != nil {
		if elapsed := now.Sub(e.lastAt); elapsed < l.config.Cooldown {
			return LimitResult{RetryAfter: l.config.Cooldown - elapsed, Reason: "cooldown"}
		}
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.MaxPlayerPerHour {
			return LimitResult{RetryAfter: time.Hour - now.Sub(e.firstAt), Reason: "player_hourly_limit"}
		}
	}

	if e := l.byIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.MaxIPPerHour {
			return LimitResult{RetryAfter: time.Hour - now.Sub(e.firstAt), Reason: "ip_hourly_limit"}
		}
	}

	return LimitResult{Allowed: true}
}

// Record counts an attempt against both the player and the IP.
func (l *Limiter) Record(playerID int64, ip string) {
	now := l.clock.Now()
	playerKey := playerKey(playerID)
	ipKey := l.hashKey("ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	bump(l.byPlayer, playerKey, now)
	bump(l.byIP, ipKey, now)
}

// Allow checks and, when allowed, records in one step.
func (l *Limiter) Allow(playerID int64, ip string) LimitResult {
	result := l.Check(playerID, ip)
	if result.Allowed {
		l.Record(playerID, ip)
	}
	return result
}

func bump(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func playerKey(playerID int64) string {
	return "player:" + strconv.FormatInt(playerID, 10)
}

// hashKey keeps raw client addresses out of memory dumps.
func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(l.config.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byPlayer {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.byPlayer, k)
		}
	}
	for k, e := range l.byIP {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.byIP, k)
		}
	}
}

func (l *Limiter) size() (players, ips int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byPlayer), len(l.byIP)
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost public IP from X-Forwarded-For.
// When trustProxy is false, ignores X-Forwarded-For entirely.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. a unix socket.
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP handles IPv4-mapped IPv6 addresses too.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func LogRateLimitExceeded(ctx context.Context, playerID int64, ip, reason string) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Int64("player_id", playerID).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Registration rate limit exceeded")
}
