// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stevedore/internal/core/feature"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/pkg/logger"
)

// FlagCache is a feature flag provider backed by the sys_feature_flags table,
// kept current via PostgreSQL LISTEN/NOTIFY. Toggling a flag on the floor
// (for example disabling cross-dock while a conveyor is down) takes effect
// without a restart.
//
// Flags configured at startup act as defaults; a database row for the same
// flag name wins.
type FlagCache struct {
	pool     *postgres.Pool
	defaults map[string]bool

	mu    sync.RWMutex
	flags map[string]FlagRow

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// FlagRow is one feature flag as stored in the database.
type FlagRow struct {
	FlagName    string
	Description string
	IsEnabled   bool
	Variant     string
	Config      map[string]any
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// NewFlagCache creates a flag cache. The defaults map usually comes from
// configuration and may be nil.
func NewFlagCache(pool *postgres.Pool, defaults map[string]bool) *FlagCache {
	d := make(map[string]bool, len(defaults))
	for name, enabled := range defaults {
		d[name] = enabled
	}
	return &FlagCache{
		pool:     pool,
		defaults: d,
		flags:    make(map[string]FlagRow),
	}
}

// Start loads the flags and begins listening for NOTIFY events.
func (c *FlagCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.loadFlags(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load feature flags: %w", err)
	}

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "feature flag cache started", "flags", c.count())
	return nil
}

// Stop gracefully stops the cache listener.
func (c *FlagCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "feature flag cache stopped")
}

// listenLoop listens for PostgreSQL NOTIFY events.
func (c *FlagCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Acquire dedicated connection for LISTEN
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		_, err = conn.Exec(c.ctx, "LISTEN feature_flags_changed;")
		if err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		logger.Info(c.ctx, "listening for feature_flags_changed notifications")

		c.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications blocks waiting for NOTIFY events. The wait timeout
// keeps shutdown responsive on a silent channel.
func (c *FlagCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return // Shutting down
			}
			// Timeout is expected, continue listening
			continue
		}

		logger.Debug(c.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)

		// Any payload means reload; the table is small enough that selective
		// invalidation is not worth the bookkeeping.
		if err := c.loadFlags(c.ctx); err != nil {
			logger.Error(c.ctx, "failed to reload feature flags", "error", err)
		}
	}
}

// loadFlags loads all feature flags from the database.
func (c *FlagCache) loadFlags(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `
		SELECT flag_name, description, is_enabled, variant,
			   config, valid_from, valid_until
		FROM sys_feature_flags
	`)
	if err != nil {
		return fmt.Errorf("query feature flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]FlagRow)
	now := time.Now()

	for rows.Next() {
		var f FlagRow
		var config []byte

		err := rows.Scan(
			&f.FlagName, &f.Description, &f.IsEnabled, &f.Variant,
			&config, &f.ValidFrom, &f.ValidUntil,
		)
		if err != nil {
			return fmt.Errorf("scan feature flag: %w", err)
		}

		if len(config) > 0 {
			var m map[string]any
			if err := json.Unmarshal(config, &m); err != nil {
				return fmt.Errorf("unmarshal feature flag config (%s): %w", f.FlagName, err)
			}
			f.Config = m
		}

		// Check validity period
		if f.ValidFrom != nil && now.Before(*f.ValidFrom) {
			f.IsEnabled = false
		}
		if f.ValidUntil != nil && now.After(*f.ValidUntil) {
			f.IsEnabled = false
		}

		flags[f.FlagName] = f
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read feature flags: %w", err)
	}

	c.mu.Lock()
	c.flags = flags
	c.mu.Unlock()

	logger.Info(ctx, "loaded feature flags", "count", len(flags))
	return nil
}

// IsEnabled checks whether a feature flag is enabled. A database row wins
// over the configured default.
func (c *FlagCache) IsEnabled(ctx context.Context, flag string) bool {
	c.mu.RLock()
	row, ok := c.flags[flag]
	c.mu.RUnlock()
	if ok {
		return row.IsEnabled
	}
	return c.defaults[flag]
}

// GetVariant returns the variant name for A/B tests.
func (c *FlagCache) GetVariant(ctx context.Context, flag string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if row, ok := c.flags[flag]; ok {
		return row.Variant
	}
	return ""
}

// GetValue returns a shallow copy of the flag config map, or nil when the
// flag is missing or has no config.
func (c *FlagCache) GetValue(ctx context.Context, flag string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	row, ok := c.flags[flag]
	if !ok || len(row.Config) == 0 {
		return nil
	}
	cfg := make(map[string]any, len(row.Config))
	for k, v := range row.Config {
		cfg[k] = v
	}
	return cfg
}

func (c *FlagCache) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}

// Ensure interface compliance at compile time.
var _ feature.FlagProvider = (*FlagCache)(nil)
