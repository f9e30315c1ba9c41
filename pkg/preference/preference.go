// Package preference models settings-backed UI preferences without a UI:
// each preference is bound to one key of a settings table and knows how to
// read, write and follow it.
package preference

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

// ErrUnknownEntry is returned when a drop-down is set to a value outside its entries.
var ErrUnknownEntry = errors.New("value is not one of the entries")

// binding is the (table, key) pair every preference persists to.
type binding struct {
	table *settings.Table
	key   string
}

func (b binding) Key() string { return b.key }

// Persisted reports whether the key currently has a stored value.
func (b binding) Persisted(ctx context.Context) bool {
	_, ok := b.table.GetString(ctx, b.key)
	return ok
}

// watch registers fn for changes of the bound key as seen by the table's user.
// Global settings are device-wide, so every change is relevant.
func (b binding) watch(bus *observer.Bus, fn func(context.Context)) observer.Registration {
	return bus.Register(b.table.URIFor(b.key), func(c schema.Change) {
		if c.Namespace != schema.Global && c.User != b.table.User() {
			return
		}
		fn(context.Background())
	})
}

// SwitchPreference is an on/off preference stored as 0 or 1.
type SwitchPreference struct {
	binding
	def bool

	hw      *hardware.Manager
	feature hardware.Feature
}

// NewSwitch binds a switch to key of table.
func NewSwitch(table *settings.Table, key string, def bool) *SwitchPreference {
	return &SwitchPreference{binding: binding{table: table, key: key}, def: def}
}

// RequireFeature makes the switch available only where the hardware feature
// is supported.
func (p *SwitchPreference) RequireFeature(m *hardware.Manager, f hardware.Feature) *SwitchPreference {
	p.hw = m
	p.feature = f
	return p
}

// Available reports whether the switch should be shown at all.
func (p *SwitchPreference) Available(ctx context.Context) bool {
	if p.hw == nil {
		return true
	}
	return p.hw.IsSupported(ctx, p.feature)
}

func (p *SwitchPreference) Value(ctx context.Context) bool {
	return p.table.GetIntDefault(ctx, p.key, boolToInt(p.def)) != 0
}

func (p *SwitchPreference) Set(ctx context.Context, on bool) bool {
	return p.table.PutInt(ctx, p.key, boolToInt(on))
}

// Watch calls fn with the fresh value whenever the key changes.
func (p *SwitchPreference) Watch(bus *observer.Bus, fn func(bool)) observer.Registration {
	return p.watch(bus, func(ctx context.Context) { fn(p.Value(ctx)) })
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Entry is one choice of a DropDownPreference.
type Entry struct {
	Label string
	Value string
}

// DropDownPreference is a single choice out of a fixed list of entries.
type DropDownPreference struct {
	binding
	entries []Entry
	def     string
}

// NewDropDown binds a drop-down to key of table. def should be one of the entry values.
func NewDropDown(table *settings.Table, key string, entries []Entry, def string) *DropDownPreference {
	return &DropDownPreference{
		binding: binding{table: table, key: key},
		entries: slices.Clone(entries),
		def:     def,
	}
}

func (p *DropDownPreference) Entries() []Entry { return slices.Clone(p.entries) }

func (p *DropDownPreference) index(value string) int {
	return slices.IndexFunc(p.entries, func(e Entry) bool { return e.Value == value })
}

// Value returns the stored value, or the default when nothing or an unknown
// value is stored.
func (p *DropDownPreference) Value(ctx context.Context) string {
	v, ok := p.table.GetString(ctx, p.key)
	if !ok || p.index(v) < 0 {
		return p.def
	}
	return v
}

// IntValue parses the current value, falling back to def.
func (p *DropDownPreference) IntValue(ctx context.Context, def int) int {
	n, err := strconv.Atoi(p.Value(ctx))
	if err != nil {
		return def
	}
	return n
}

// Selected returns the entry of the current value.
func (p *DropDownPreference) Selected(ctx context.Context) (Entry, bool) {
	i := p.index(p.Value(ctx))
	if i < 0 {
		return Entry{}, false
	}
	return p.entries[i], true
}

func (p *DropDownPreference) Set(ctx context.Context, value string) error {
	if p.index(value) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownEntry, value)
	}
	if !p.table.PutString(ctx, p.key, value) {
		return fmt.Errorf("store %s", p.key)
	}
	return nil
}

// Watch calls fn with the fresh value whenever the key changes.
func (p *DropDownPreference) Watch(bus *observer.Bus, fn func(string)) observer.Registration {
	return p.watch(bus, func(ctx context.Context) { fn(p.Value(ctx)) })
}
