package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"headswap/internal/config"
)

func TestGenerateKey(t *testing.T) {
	cache := &Cache{prefix: "hs:"}

	tests := []struct {
		name     string
		ruleset  string
		path     string
		expected bool // whether keys should be different
	}{
		{
			name:     "same ruleset and path",
			ruleset:  "abc",
			path:     "site/index.htm",
			expected: false,
		},
		{
			name:     "different path",
			ruleset:  "abc",
			path:     "site/other.htm",
			expected: true,
		},
		{
			name:     "different ruleset",
			ruleset:  "def",
			path:     "site/index.htm",
			expected: true,
		},
	}

	baseKey := cache.generateKey("abc", "site/index.htm")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := cache.generateKey(tt.ruleset, tt.path)

			if tt.expected && key == baseKey {
				t.Error("expected different keys but got same")
			}
			if !tt.expected && key != baseKey {
				t.Error("expected same keys but got different")
			}
		})
	}

	if got := cache.generateKey("abc", "x"); got[:len("hs:abc:")] != "hs:abc:" {
		t.Errorf("key %q does not carry prefix and ruleset", got)
	}
}

func TestRuleset(t *testing.T) {
	base := Ruleset([]byte("<head></head>"), "head", "auto")

	tests := []struct {
		name     string
		header   string
		selector string
		format   string
	}{
		{"different header", "<head><title>x</title></head>", "head", "auto"},
		{"different selector", "<head></head>", "meta", "auto"},
		{"different format", "<head></head>", "head", "xml"},
		{"boundary shift", "<head></head>h", "ead", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Ruleset([]byte(tt.header), tt.selector, tt.format) == base {
				t.Error("expected a different ruleset fingerprint")
			}
		})
	}

	if Ruleset([]byte("<head></head>"), "head", "auto") != base {
		t.Error("ruleset fingerprint must be deterministic")
	}
}

func TestUpToDate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	cache := NewWithStore(mem, "hs:", time.Hour)

	ok, err := cache.UpToDate(ctx, "r1", "a.htm", []byte("v1"))
	if err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	if err := cache.Remember(ctx, "r1", "a.htm", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if mem.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", mem.Len())
	}

	tests := []struct {
		name     string
		ruleset  string
		path     string
		content  string
		expected bool
	}{
		{"same content", "r1", "a.htm", "v1", true},
		{"edited since", "r1", "a.htm", "v2", false},
		{"other ruleset", "r2", "a.htm", "v1", false},
		{"other file", "r1", "b.htm", "v1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := cache.UpToDate(ctx, tt.ruleset, tt.path, []byte(tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, ok)
			}
		})
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("boom")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("boom")
}

func (failingStore) Close() error { return nil }

func TestStoreErrors(t *testing.T) {
	cache := NewWithStore(failingStore{}, "", 0)

	if _, err := cache.UpToDate(context.Background(), "r", "p", nil); err == nil {
		t.Error("expected read error")
	}
	if err := cache.Remember(context.Background(), "r", "p", nil); err == nil {
		t.Error("expected write error")
	}
}

// TestRedis runs against a real server when HEADSWAP_TEST_REDIS is set,
// e.g. HEADSWAP_TEST_REDIS=localhost:6379.
func TestRedis(t *testing.T) {
	addr := os.Getenv("HEADSWAP_TEST_REDIS")
	if addr == "" {
		t.Skip("HEADSWAP_TEST_REDIS not set")
	}

	ctx := context.Background()
	cache, err := New(ctx, config.RedisConfig{Addr: addr, KeyPrefix: "headswap-test:"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	ruleset := Ruleset([]byte(t.Name()), "head", "auto")
	if err := cache.Remember(ctx, ruleset, "x.htm", []byte("content")); err != nil {
		t.Fatal(err)
	}
	ok, err := cache.UpToDate(ctx, ruleset, "x.htm", []byte("content"))
	if err != nil || !ok {
		t.Errorf("expected hit, got ok=%v err=%v", ok, err)
	}
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := New(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, 0); err == nil {
		t.Error("expected connection error")
	}
}
