package sdk

import (
	"context"
	"errors"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

var (
	// ErrRemote wraps every ERR reply of the daemon.
	ErrRemote = errors.New("remote error")
	// ErrInvalidName is returned for setting names the line protocol cannot carry.
	ErrInvalidName = errors.New("setting name must be non-empty and contain no whitespace")
	// ErrUnexpectedReply is returned when the daemon answers outside the protocol.
	ErrUnexpectedReply = errors.New("unexpected reply")
	// ErrNoNotifications is returned by BusFor for stores that can't deliver changes.
	ErrNoNotifications = errors.New("store does not deliver change notifications")
)

// --- Functional Interfaces (Interface Segregation) ---

// Lister enumerates a namespace.
type Lister interface {
	List(ctx context.Context, ns schema.Namespace, user schema.UserID) (map[string]string, error)
}

// Deleter removes settings.
type Deleter interface {
	Delete(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) error
}

// Migrator re-runs the schema upgrade of a user's database.
type Migrator interface {
	Migrate(ctx context.Context, user schema.UserID) error
}

// --- Composite Interfaces ---

// Store is a complete settings backend, whether embedded or remote. It plugs
// straight into settings.New.
type Store interface {
	settings.Provider
	Lister
	Deleter
	Migrator

	Close() error
}
