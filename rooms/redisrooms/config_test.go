package redisrooms

import (
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func testClient() *redis.Client {
	// Construction never touches the network.
	return redis.NewClient(&redis.Options{Addr: "localhost:6379"})
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{Address: "127.0.0.1:3000"}); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(Config{Client: testClient()}); err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestNewRejectsGlobAddress(t *testing.T) {
	if _, err := New(Config{Client: testClient(), Address: "host*"}); err == nil {
		t.Fatal("expected error for glob metacharacters in address")
	}
}

func TestNewComputesInstanceEagerly(t *testing.T) {
	a, err := New(Config{Client: testClient(), Address: "10.0.0.3:8080", BootID: "boot-1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.instance != "10.0.0.3:8080_boot-1" {
		t.Fatalf("unexpected instance %q", a.instance)
	}
	if got := a.roomKey("lobby"); got != "primus:rooms:10.0.0.3:8080_boot-1:lobby" {
		t.Fatalf("unexpected room key %q", got)
	}
	if got := a.sparkKey("s1"); got != "primus:sparks:s1" {
		t.Fatalf("unexpected spark key %q", got)
	}
}

func TestNewGeneratesBootID(t *testing.T) {
	a, err := New(Config{Client: testClient(), Address: "127.0.0.1:3000"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !strings.HasPrefix(a.instance, "127.0.0.1:3000_") {
		t.Fatalf("unexpected instance %q", a.instance)
	}
	if a.instance == "127.0.0.1:3000_" {
		t.Fatal("expected generated boot id")
	}
}

func TestTTLSizing(t *testing.T) {
	a, err := New(Config{
		Client:            testClient(),
		Address:           "127.0.0.1:3000",
		RefreshInterval:   5 * time.Minute,
		HeartbeatInterval: 25 * time.Second,
		DriftFactor:       1.2,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.roomTTL != 360*time.Second {
		t.Fatalf("expected room TTL 360s, got %v", a.roomTTL)
	}
	if a.sparkTTL != 30*time.Second {
		t.Fatalf("expected spark TTL 30s, got %v", a.sparkTTL)
	}
	// The sweep interval must re-arm keys strictly before they could expire.
	if a.refreshEvery >= a.roomTTL {
		t.Fatalf("refresh interval %v does not precede TTL %v", a.refreshEvery, a.roomTTL)
	}
}

func TestTTLCeilsFractionalSeconds(t *testing.T) {
	// 7s x 1.2 = 8.4s, which must round up to a whole 9s.
	if got := ttlFor(7*time.Second, 1.2); got != 9*time.Second {
		t.Fatalf("expected 9s, got %v", got)
	}
}

func TestRoomFromKey(t *testing.T) {
	// Instance addresses contain colons; the room is the final segment.
	key := "primus:rooms:10.0.0.3:8080_boot-1:lobby"
	if got := roomFromKey(key); got != "lobby" {
		t.Fatalf("expected %q, got %q", "lobby", got)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	a, err := New(Config{Client: testClient(), Address: "127.0.0.1:3000"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// Idempotent in both directions; no tick fires so no store round trip.
	a.Start()
	a.Start()
	a.Stop()
	a.Stop()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
