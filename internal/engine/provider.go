package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
)

// Options configures a Provider.
type Options struct {
	DataDir   string
	Resources Resources
	Logger    zerolog.Logger
}

// Provider is the settings service. It owns one database per user, the
// per-namespace version counters and the change notification bus.
type Provider struct {
	dir string
	res Resources
	log zerolog.Logger
	bus *observer.Bus

	mu     sync.Mutex
	dbs    map[schema.UserID]*Database
	closed bool

	versions map[schema.Namespace]*atomic.Int64
}

// NewProvider initializes a provider over dir. Databases are opened on first use.
//
// Version counters start at the wall clock in nanoseconds. Remote clients
// outlive the provider, and a restarted provider must never hand out a
// version one of them may still hold.
func NewProvider(opts Options) *Provider {
	log := opts.Logger.With().Str("component", "engine").Logger()
	seed := time.Now().UnixNano()
	versions := make(map[schema.Namespace]*atomic.Int64, len(schema.Namespaces))
	for _, ns := range schema.Namespaces {
		c := new(atomic.Int64)
		c.Store(seed)
		versions[ns] = c
	}
	return &Provider{
		dir:      opts.DataDir,
		res:      opts.Resources,
		log:      log,
		bus:      observer.NewBus(opts.Logger),
		dbs:      make(map[schema.UserID]*Database),
		versions: versions,
	}
}

// Bus returns the bus change notifications are published on.
func (p *Provider) Bus() *observer.Bus { return p.bus }

// route maps a request onto the user whose database holds it. Global
// settings are device-wide and live with the primary user.
func route(ns schema.Namespace, user schema.UserID) schema.UserID {
	if ns == schema.Global {
		return schema.UserSystem
	}
	return user
}

// Database returns user's database, opening it on first use.
func (p *Provider) Database(ctx context.Context, user schema.UserID) (*Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if db, ok := p.dbs[user]; ok {
		return db, nil
	}
	db, err := OpenDatabase(ctx, p.dir, user, p.res, p.log)
	if err != nil {
		return nil, fmt.Errorf("open database for user %d: %w", user, err)
	}
	p.dbs[user] = db
	return db, nil
}

// Call reads a single setting.
func (p *Provider) Call(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (string, bool, error) {
	db, err := p.Database(ctx, route(ns, user))
	if err != nil {
		return "", false, err
	}
	return db.Get(ctx, ns, name)
}

// Query reads a single setting. In process it shares Call's path.
func (p *Provider) Query(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (string, bool, error) {
	return p.Call(ctx, ns, name, user)
}

// Put stores a setting, bumps the namespace version and publishes the change.
func (p *Provider) Put(ctx context.Context, ns schema.Namespace, name, value string, user schema.UserID) error {
	owner := route(ns, user)
	db, err := p.Database(ctx, owner)
	if err != nil {
		return err
	}
	if err := db.Put(ctx, ns, name, value); err != nil {
		return err
	}
	p.committed(ns, name, owner)
	return nil
}

// Delete removes a setting. The version only moves when a row was removed.
func (p *Provider) Delete(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) error {
	owner := route(ns, user)
	db, err := p.Database(ctx, owner)
	if err != nil {
		return err
	}
	removed, err := db.Delete(ctx, ns, name)
	if err != nil {
		return err
	}
	if removed {
		p.committed(ns, name, owner)
	}
	return nil
}

func (p *Provider) committed(ns schema.Namespace, name string, user schema.UserID) {
	v := p.versions[ns].Add(1)
	p.log.Trace().Str("namespace", ns.String()).Str("name", name).Int64("version", v).Msg("committed")
	p.bus.Notify(schema.Change{Namespace: ns, Name: name, User: user})
}

// Version returns the namespace's version counter.
func (p *Provider) Version(_ context.Context, ns schema.Namespace) (int64, error) {
	c, ok := p.versions[ns]
	if !ok {
		return 0, fmt.Errorf("unknown namespace %q", ns)
	}
	return c.Load(), nil
}

// List returns every setting of a namespace for user.
func (p *Provider) List(ctx context.Context, ns schema.Namespace, user schema.UserID) (map[string]string, error) {
	db, err := p.Database(ctx, route(ns, user))
	if err != nil {
		return nil, err
	}
	return db.List(ctx, ns)
}

// Migrate re-runs the schema upgrade for user's database from its stamped
// version. Every namespace version is bumped since any row may have changed.
func (p *Provider) Migrate(ctx context.Context, user schema.UserID) error {
	db, err := p.Database(ctx, user)
	if err != nil {
		return err
	}
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current < DatabaseVersion {
		if err := db.Upgrade(ctx, current, DatabaseVersion); err != nil {
			return err
		}
	}
	for _, c := range p.versions {
		c.Add(1)
	}
	return nil
}

// Close closes every open database and stops the notification bus.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dbs := p.dbs
	p.dbs = nil
	p.mu.Unlock()

	var errs *multierror.Error
	for user, db := range dbs {
		if err := db.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close database for user %d: %w", user, err))
		}
	}
	p.bus.Close()
	return errs.ErrorOrNil()
}
