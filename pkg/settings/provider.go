// Package settings is the client side of the settings store: typed accessors
// for the System, Secure and Global tables layered on a per-namespace cache
// that is invalidated by the provider's version counters.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/evervolv/evsettings/pkg/schema"
)

// Provider is the remote end the cache reads from and writes to. It is
// implemented by the embedded engine and by the network client.
type Provider interface {
	// Call is the fast path for reading a single value.
	Call(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (value string, found bool, err error)
	// Query is the table-query fallback used when Call fails.
	Query(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (value string, found bool, err error)
	// Put stores value. A successful Put has bumped the namespace version.
	Put(ctx context.Context, ns schema.Namespace, name, value string, user schema.UserID) error
	// Version returns the current version counter of a namespace.
	Version(ctx context.Context, ns schema.Namespace) (int64, error)
}

// ErrSettingNotFound is returned by the typed getters without a default when
// the setting is absent or its value does not parse.
var ErrSettingNotFound = errors.New("setting not found")

// NotFoundError names the setting that could not be read.
type NotFoundError struct {
	Namespace schema.Namespace
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s/%s", ErrSettingNotFound, e.Namespace, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrSettingNotFound }
