// Package backup exports a user's settings to an encrypted blob and restores
// them, checking every value against the validator maps on the way back in.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/evervolv/evsettings/internal/vault"
	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

// FormatVersion is stamped into every snapshot.
const FormatVersion = 1

var (
	ErrUnsupportedFormat = errors.New("unsupported backup format")
	ErrInvalidValue      = errors.New("value rejected by validator")
)

type Lister interface {
	List(ctx context.Context, ns schema.Namespace, user schema.UserID) (map[string]string, error)
}

type Putter interface {
	Put(ctx context.Context, ns schema.Namespace, name, value string, user schema.UserID) error
}

// Snapshot is the plaintext layout of a backup.
type Snapshot struct {
	Format  int                          `json:"format"`
	User    schema.UserID                `json:"user"`
	Created time.Time                    `json:"created"`
	Tables  map[string]map[string]string `json:"tables"`
}

// Report summarises an Import.
type Report struct {
	Restored int
	Skipped  int
}

// Export reads every table of user and seals it with key. Global settings are
// device-wide and only travel with the primary user.
func Export(ctx context.Context, src Lister, user schema.UserID, key []byte) ([]byte, error) {
	snap := Snapshot{
		Format:  FormatVersion,
		User:    user,
		Created: time.Now().UTC(),
		Tables:  make(map[string]map[string]string),
	}
	for _, ns := range schema.Namespaces {
		if ns == schema.Global && user != schema.UserSystem {
			continue
		}
		rows, err := src.List(ctx, ns, user)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", ns, err)
		}
		snap.Tables[ns.String()] = rows
	}

	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return vault.Seal(plain, key)
}

// Decode opens a blob produced by Export.
func Decode(blob, key []byte) (*Snapshot, error) {
	plain, err := vault.Open(blob, key)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if snap.Format != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, snap.Format)
	}
	return &snap, nil
}

// Import restores a blob into user's tables. Entries of unknown namespaces
// and values their validator rejects are skipped; the returned error lists
// every skipped entry and every failed write. Names without a validator are
// restored as they are.
func Import(ctx context.Context, dst Putter, blob, key []byte, user schema.UserID) (Report, error) {
	var report Report
	snap, err := Decode(blob, key)
	if err != nil {
		return report, err
	}

	var errs *multierror.Error
	for _, table := range slices.Sorted(maps.Keys(snap.Tables)) {
		rows := snap.Tables[table]
		ns, err := schema.ParseNamespace(table)
		if err != nil {
			report.Skipped += len(rows)
			errs = multierror.Append(errs, err)
			continue
		}

		for _, name := range slices.Sorted(maps.Keys(rows)) {
			value := rows[name]
			if known, ok := settings.Validate(ns, name, value); known && !ok {
				report.Skipped++
				errs = multierror.Append(errs, fmt.Errorf("%s/%s=%q: %w", ns, name, value, ErrInvalidValue))
				continue
			}
			if err := dst.Put(ctx, ns, name, value, user); err != nil {
				report.Skipped++
				errs = multierror.Append(errs, fmt.Errorf("restore %s/%s: %w", ns, name, err))
				continue
			}
			report.Restored++
		}
	}
	return report, errs.ErrorOrNil()
}
