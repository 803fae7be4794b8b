// Package registry caches which guild each Discord server registered.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/storage"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared load from the source.
const DefaultLoadTimeout = 10 * time.Second

type Source interface {
	GuildServers(ctx context.Context, serverID string) ([]storage.ServerGuild, error)
}

// Cache maps server ids to guild ids. Entries are only ever added or
// replaced, so a server never has two guilds. Registrations are not written
// through; the next miss reloads from the source.
type Cache struct {
	source      Source
	group       singleflight.Group
	loadTimeout time.Duration

	mu     sync.RWMutex
	guilds map[string]string
}

func New(source Source) *Cache {
	return &Cache{
		source:      source,
		loadTimeout: DefaultLoadTimeout,
		guilds:      make(map[string]string),
	}
}

func (c *Cache) get(serverID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	guild, ok := c.guilds[serverID]
	return guild, ok
}

// Merge stores every pair, the last one wins for a repeated server.
func (c *Cache) Merge(entries []storage.ServerGuild) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if e.Server == "" || e.Guild == "" {
			continue
		}
		c.guilds[e.Server] = e.Guild
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.guilds)
}

// Lookup returns the guild of serverID, loading every mapping the source
// returns on a miss. errs.ErrNotRegistered is returned when the server is
// still unknown afterwards.
func (c *Cache) Lookup(ctx context.Context, serverID string) (string, error) {
	if guild, ok := c.get(serverID); ok {
		return guild, nil
	}

	// The load is shared by every waiter and outlives a cancelled caller.
	// Each caller still gives up on its own ctx.
	ch := c.group.DoChan(serverID, func() (interface{}, error) {
		logger.Debug("Guild cache miss for server %s, loading from storage", serverID)

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		entries, err := c.source.GuildServers(loadCtx, serverID)
		if err != nil {
			return nil, err
		}
		c.Merge(entries)
		return nil, nil
	})

	var err error
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		err = res.Err
	}
	if err != nil {
		return "", fmt.Errorf("failed to load guild for server %s: %w", serverID, err)
	}

	if guild, ok := c.get(serverID); ok {
		return guild, nil
	}
	return "", errs.ErrNotRegistered
}
