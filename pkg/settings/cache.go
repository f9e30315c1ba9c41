package settings

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/evervolv/evsettings/pkg/schema"
)

type cachedValue struct {
	value   string
	present bool
}

type fetchResult struct {
	value     string
	present   bool
	confirmed bool
}

// nameValueCache caches the local user's values of one namespace. The whole
// cache is dropped whenever the provider's version counter moves.
type nameValueCache struct {
	ns       schema.Namespace
	provider Provider
	self     schema.UserID
	log      zerolog.Logger

	// mu guards values and version. It is never held across provider calls.
	mu      sync.Mutex
	values  map[string]cachedValue
	version int64

	inflight singleflight.Group
}

func newNameValueCache(ns schema.Namespace, p Provider, self schema.UserID, log zerolog.Logger) *nameValueCache {
	return &nameValueCache{
		ns:       ns,
		provider: p,
		self:     self,
		log:      log,
		values:   make(map[string]cachedValue),
	}
}

// get returns the value of name for user. A failed fetch and a confirmed
// absence both report present == false; only the latter is cached.
func (c *nameValueCache) get(ctx context.Context, name string, user schema.UserID) (string, bool) {
	isSelf := user == c.self
	cacheable := false
	var version int64

	if isSelf {
		v, err := c.provider.Version(ctx, c.ns)
		if err != nil {
			c.log.Warn().Err(err).Str("namespace", c.ns.String()).Msg("can't read settings version, bypassing cache")
		} else {
			cacheable = true
			version = v

			c.mu.Lock()
			if c.version != v {
				c.log.Trace().Str("namespace", c.ns.String()).Int64("current", v).Int64("cached", c.version).Msg("invalidate")
				clear(c.values)
				c.version = v
			}
			if e, ok := c.values[name]; ok {
				c.mu.Unlock()
				return e.value, e.present
			}
			c.mu.Unlock()
		}
	}

	// A fetch only satisfies readers that observed the same version; one
	// started before a write must not be shared with a reader after it.
	key := "-/" + user.String() + "/" + name
	if cacheable {
		key = strconv.FormatInt(version, 10) + "/" + user.String() + "/" + name
	}
	res, _, _ := c.inflight.Do(key, func() (any, error) {
		return c.fetch(ctx, name, user), nil
	})
	r := res.(fetchResult)

	// Other users' data never enters the local cache.
	if cacheable && r.confirmed {
		c.mu.Lock()
		if c.version == version {
			c.values[name] = cachedValue{value: r.value, present: r.present}
		}
		c.mu.Unlock()
	}
	return r.value, r.present
}

func (c *nameValueCache) fetch(ctx context.Context, name string, user schema.UserID) fetchResult {
	value, found, err := c.provider.Call(ctx, c.ns, name, user)
	if err == nil {
		return fetchResult{value: value, present: found, confirmed: true}
	}
	c.log.Debug().Err(err).Str("namespace", c.ns.String()).Str("name", name).Msg("call failed, falling back to query")

	value, found, err = c.provider.Query(ctx, c.ns, name, user)
	if err != nil {
		c.log.Warn().Err(err).Str("namespace", c.ns.String()).Str("name", name).Msg("can't get key")
		return fetchResult{}
	}
	return fetchResult{value: value, present: found, confirmed: true}
}

// put writes through to the provider. The cache itself is reconciled by the
// version bump on the next get.
func (c *nameValueCache) put(ctx context.Context, name, value string, user schema.UserID) bool {
	if err := c.provider.Put(ctx, c.ns, name, value, user); err != nil {
		c.log.Warn().Err(err).Str("namespace", c.ns.String()).Str("name", name).Msg("can't set key")
		return false
	}
	return true
}
