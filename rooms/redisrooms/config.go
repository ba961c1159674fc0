package redisrooms

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

const (
	defaultNamespace         = "primus"
	defaultRefreshInterval   = 5 * time.Minute
	defaultHeartbeatInterval = 30 * time.Second
	defaultDriftFactor       = 1.2
	defaultScanCount         = 100
	defaultBroadcastBatch    = 50000
)

// Config contains configuration options for the Redis rooms adapter.
type Config struct {
	// Client is the Redis client instance. Required. The adapter does not own
	// the client and never closes it.
	Client redis.UniversalClient

	// Address is this server's transport address, e.g. "10.0.0.3:8080".
	// Required: it forms the instance half of every room key.
	Address string

	// BootID distinguishes this process from a previous process at the same
	// address. Defaults to a generated uuid.
	BootID string

	// Namespace prefixes every key. Default: "primus".
	Namespace string

	// RefreshInterval is how often this instance's room keys are re-armed.
	// Room key TTL = ceil(RefreshInterval x DriftFactor). Default: 5m.
	RefreshInterval time.Duration

	// HeartbeatInterval is the transport's heartbeat period. Spark key TTL =
	// ceil(HeartbeatInterval x DriftFactor). Default: 30s.
	HeartbeatInterval time.Duration

	// DriftFactor sizes TTLs relative to their refresh interval so a live
	// entry is always re-armed before it could expire. Default: 1.2.
	DriftFactor float64

	// ScanCount bounds how many candidates each SCAN/SSCAN round trip
	// inspects. Default: 100.
	ScanCount int64

	// BroadcastBatch bounds how many spark ids are handed to the Forwarder
	// per call. Default: 50000.
	BroadcastBatch int

	// Forwarder delivers broadcast payloads. Optional; Broadcast fails with
	// rooms.ErrNoForwarder when unset.
	Forwarder rooms.Forwarder

	// OnBackgroundError observes failures from the periodic refresh loop.
	// Defaults to logging via slog.
	OnBackgroundError func(error)

	// Clock drives the refresh loop. Defaults to the wall clock; tests inject
	// a mock.
	Clock clock.Clock
}

// Env carries the environment-derived subset of Config used by NewFromEnv.
type Env struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Namespace for all keys. ENV: ROOMS_NAMESPACE
	Namespace string `env:"ROOMS_NAMESPACE,default=primus"`
	// Address of this server instance. ENV: ROOMS_ADDRESS
	Address string `env:"ROOMS_ADDRESS"`
	// RefreshInterval for room keys. ENV: ROOMS_REFRESH_INTERVAL
	RefreshInterval time.Duration `env:"ROOMS_REFRESH_INTERVAL,default=5m"`
	// HeartbeatInterval for spark keys. ENV: ROOMS_HEARTBEAT_INTERVAL
	HeartbeatInterval time.Duration `env:"ROOMS_HEARTBEAT_INTERVAL,default=30s"`
}

// Adapter implements rooms.Adapter against a shared Redis store.
type Adapter struct {
	client    redis.UniversalClient
	namespace string
	instance  string
	forwarder rooms.Forwarder
	observe   func(error)
	clk       clock.Clock

	roomTTL      time.Duration
	sparkTTL     time.Duration
	refreshEvery time.Duration
	scanCount    int64
	batchSize    int

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Redis rooms adapter. The server-instance identity is computed
// here, eagerly, from the address and boot id; a missing client or address is
// a construction error, never deferred.
func New(cfg Config) (*Adapter, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if strings.ContainsAny(cfg.Address, "*?[]") {
		return nil, fmt.Errorf("server address %q contains glob metacharacters", cfg.Address)
	}

	if cfg.BootID == "" {
		cfg.BootID = uuid.NewString()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.DriftFactor <= 1 {
		cfg.DriftFactor = defaultDriftFactor
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = defaultScanCount
	}
	if cfg.BroadcastBatch <= 0 {
		cfg.BroadcastBatch = defaultBroadcastBatch
	}
	if cfg.OnBackgroundError == nil {
		cfg.OnBackgroundError = func(err error) {
			slog.Error("rooms: background refresh failed", "err", err)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	roomTTL := ttlFor(cfg.RefreshInterval, cfg.DriftFactor)

	return &Adapter{
		client:       cfg.Client,
		namespace:    cfg.Namespace,
		instance:     cfg.Address + "_" + cfg.BootID,
		forwarder:    cfg.Forwarder,
		observe:      cfg.OnBackgroundError,
		clk:          cfg.Clock,
		roomTTL:      roomTTL,
		sparkTTL:     ttlFor(cfg.HeartbeatInterval, cfg.DriftFactor),
		refreshEvery: time.Duration(float64(roomTTL) / cfg.DriftFactor),
		scanCount:    cfg.ScanCount,
		batchSize:    cfg.BroadcastBatch,
	}, nil
}

// NewFromEnv builds an adapter from environment variables, creating and owning
// its own Redis client.
func NewFromEnv(forwarder rooms.Forwarder) (*Adapter, error) {
	var e Env
	if err := envdecode.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: e.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(Config{
		Client:            client,
		Address:           e.Address,
		Namespace:         e.Namespace,
		RefreshInterval:   e.RefreshInterval,
		HeartbeatInterval: e.HeartbeatInterval,
		Forwarder:         forwarder,
	})
}

// Close stops the background refresh loop. It does not close the Redis client,
// which the caller injected and still owns.
func (a *Adapter) Close() error {
	a.Stop()
	return nil
}

// ttlFor sizes a TTL as ceil(interval x drift) in whole seconds, matching the
// key-format contract shared with other store clients.
func ttlFor(interval time.Duration, drift float64) time.Duration {
	return time.Duration(math.Ceil(interval.Seconds()*drift)) * time.Second
}

// --- Key helpers ---

func (a *Adapter) roomKey(room string) string {
	return a.namespace + ":rooms:" + a.instance + ":" + room
}

// roomPattern matches the room's membership key on every instance.
func (a *Adapter) roomPattern(room string) string {
	return a.namespace + ":rooms:*:" + room
}

func (a *Adapter) allRoomsPattern() string { return a.namespace + ":rooms:*:*" }

func (a *Adapter) ownRoomsPattern() string {
	return a.namespace + ":rooms:" + a.instance + ":*"
}

func (a *Adapter) sparkKey(sparkID string) string {
	return a.namespace + ":sparks:" + sparkID
}

func (a *Adapter) sparkPrefix() string { return a.namespace + ":sparks:" }

// roomFromKey derives the room name from a membership key. The room is the
// final segment; instance addresses may themselves contain colons, so the
// last separator is authoritative.
func roomFromKey(key string) string {
	return key[strings.LastIndexByte(key, ':')+1:]
}

// Compile-time interface check
var _ rooms.Adapter = (*Adapter)(nil)
