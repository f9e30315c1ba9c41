package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/validator"
)

// Settings bundles the three tables of one client. Build it once at startup
// and pass it to whatever needs settings access.
type Settings struct {
	System *Table
	Secure *Table
	Global *Table
}

// Options configures a Settings client.
type Options struct {
	// User is the locally authoritative user. Only its reads are cached.
	User   schema.UserID
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// New returns the tables backed by p.
func New(p Provider, opts Options) *Settings {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "settings").Logger()
	}
	s := &Settings{}
	s.System = newTable(s, schema.System, p, opts.User, log)
	s.Secure = newTable(s, schema.Secure, p, opts.User, log)
	s.Global = newTable(s, schema.Global, p, opts.User, log)
	return s
}

// Table returns the table of ns.
func (s *Settings) Table(ns schema.Namespace) *Table {
	switch ns {
	case schema.System:
		return s.System
	case schema.Secure:
		return s.Secure
	case schema.Global:
		return s.Global
	}
	return nil
}

// Table gives typed access to one namespace on behalf of one user.
type Table struct {
	ns     schema.Namespace
	user   schema.UserID
	cache  *nameValueCache
	parent *Settings
	log    zerolog.Logger
}

func newTable(parent *Settings, ns schema.Namespace, p Provider, user schema.UserID, log zerolog.Logger) *Table {
	return &Table{
		ns:     ns,
		user:   user,
		cache:  newNameValueCache(ns, p, user, log),
		parent: parent,
		log:    log,
	}
}

// AsUser returns a view of the table pinned to another user. Reads through
// the view bypass the local cache unless user is the local user.
func (t *Table) AsUser(user schema.UserID) *Table {
	scoped := *t
	scoped.user = user
	return &scoped
}

// Namespace returns the namespace served by the table.
func (t *Table) Namespace() schema.Namespace { return t.ns }

// User returns the user the table acts for.
func (t *Table) User() schema.UserID { return t.user }

// URIFor returns the observer key for name.
func (t *Table) URIFor(name string) string { return schema.URI(t.ns, name) }

// IsLegacy reports whether name is a legacy setting of this table.
func (t *Table) IsLegacy(name string) bool { return IsLegacy(t.ns, name) }

// Validators returns the validator map of this table.
func (t *Table) Validators() map[string]validator.Validator { return Validators(t.ns) }

func (t *Table) redirect(name string) (*Table, bool) {
	dst, ok := MovedTo(t.ns, name)
	if !ok {
		return nil, false
	}
	t.log.Warn().Str("name", name).Str("from", t.ns.String()).Str("to", dst.String()).
		Msg("setting has moved, value is unchanged")
	return t.parent.Table(dst).AsUser(t.user), true
}

// GetString looks up name. The second result is false when the setting is
// absent or the provider could not be reached.
func (t *Table) GetString(ctx context.Context, name string) (string, bool) {
	if dst, ok := t.redirect(name); ok {
		return dst.GetString(ctx, name)
	}
	return t.cache.get(ctx, name, t.user)
}

// GetStringDefault returns def when name is not set.
func (t *Table) GetStringDefault(ctx context.Context, name, def string) string {
	if v, ok := t.GetString(ctx, name); ok {
		return v
	}
	return def
}

// PutString stores name=value and reports whether the write succeeded.
// Writes to a name that moved to another table are refused.
func (t *Table) PutString(ctx context.Context, name, value string) bool {
	if dst, ok := MovedTo(t.ns, name); ok {
		t.log.Warn().Str("name", name).Str("from", t.ns.String()).Str("to", dst.String()).
			Msg("setting has moved, value is read-only here")
		return false
	}
	return t.cache.put(ctx, name, value, t.user)
}

// GetInt returns the value of name as an int, or an error matching
// ErrSettingNotFound when it is absent or not a 32-bit integer.
func (t *Table) GetInt(ctx context.Context, name string) (int, error) {
	v, ok := t.GetString(ctx, name)
	if !ok {
		return 0, t.notFound(name)
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, t.notFound(name)
	}
	return int(n), nil
}

// GetIntDefault returns def when name is absent or not an integer.
func (t *Table) GetIntDefault(ctx context.Context, name string, def int) int {
	n, err := t.GetInt(ctx, name)
	if err != nil {
		return def
	}
	return n
}

func (t *Table) PutInt(ctx context.Context, name string, value int) bool {
	return t.PutString(ctx, name, strconv.Itoa(value))
}

// GetLong is GetInt for 64-bit values.
func (t *Table) GetLong(ctx context.Context, name string) (int64, error) {
	v, ok := t.GetString(ctx, name)
	if !ok {
		return 0, t.notFound(name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, t.notFound(name)
	}
	return n, nil
}

func (t *Table) GetLongDefault(ctx context.Context, name string, def int64) int64 {
	n, err := t.GetLong(ctx, name)
	if err != nil {
		return def
	}
	return n
}

func (t *Table) PutLong(ctx context.Context, name string, value int64) bool {
	return t.PutString(ctx, name, strconv.FormatInt(value, 10))
}

// GetFloat returns the value of name as a float32.
func (t *Table) GetFloat(ctx context.Context, name string) (float32, error) {
	v, ok := t.GetString(ctx, name)
	if !ok {
		return 0, t.notFound(name)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return 0, t.notFound(name)
	}
	return float32(f), nil
}

func (t *Table) GetFloatDefault(ctx context.Context, name string, def float32) float32 {
	f, err := t.GetFloat(ctx, name)
	if err != nil {
		return def
	}
	return f
}

func (t *Table) PutFloat(ctx context.Context, name string, value float32) bool {
	return t.PutString(ctx, name, strconv.FormatFloat(float64(value), 'f', -1, 32))
}

// PutListAsDelimitedString joins list with delimiter and stores it. Items
// containing the delimiter do not survive a round trip.
func (t *Table) PutListAsDelimitedString(ctx context.Context, name, delimiter string, list []string) bool {
	return t.PutString(ctx, name, strings.Join(list, delimiter))
}

// GetDelimitedStringAsList splits the stored value on delimiter, dropping
// empty segments.
func (t *Table) GetDelimitedStringAsList(ctx context.Context, name, delimiter string) []string {
	v, _ := t.GetString(ctx, name)
	list := validator.SplitNonEmpty(v, delimiter)
	if list == nil {
		return []string{}
	}
	return list
}

func (t *Table) notFound(name string) error {
	return &NotFoundError{Namespace: t.ns, Name: name}
}
