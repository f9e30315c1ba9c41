// Package engine implements the settings provider: per-user SQLite databases,
// schema migration, version counters and change notification.
package engine

import (
	"context"
	"errors"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

var (
	// ErrNoGlobalTable is returned when a non-primary user's database is asked for the global table.
	ErrNoGlobalTable = errors.New("global table exists only for the primary user")
	// ErrDowngrade is returned when a database was written by a newer schema.
	ErrDowngrade = errors.New("database schema is newer than supported")
	// ErrClosed is returned by a provider after Close.
	ErrClosed = errors.New("provider closed")
)

// DatabaseName is the file name of every per-user settings database.
const DatabaseName = "evervolv.db"

// DatabaseVersion is the latest schema version.
const DatabaseVersion = 5

// Store is the contract shared by the embedded provider and the network client.
type Store interface {
	settings.Provider

	// List returns every name/value pair of a namespace for user.
	List(ctx context.Context, ns schema.Namespace, user schema.UserID) (map[string]string, error)
	// Delete removes a setting. Deleting an absent setting is not an error.
	Delete(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) error
	// Migrate re-runs the schema upgrade for user's database.
	Migrate(ctx context.Context, user schema.UserID) error
}
