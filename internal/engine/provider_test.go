package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p := NewProvider(Options{
		DataDir:   t.TempDir(),
		Resources: DefaultResources(),
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProviderPutBumpsVersion(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	before, err := p.Version(ctx, schema.System)
	require.NoError(t, err)
	require.NoError(t, p.Put(ctx, schema.System, "k", "v", 0))
	after, err := p.Version(ctx, schema.System)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	secure, err := p.Version(ctx, schema.Secure)
	require.NoError(t, err)
	assert.Equal(t, before, secure)

	// Deleting an absent row leaves the version alone.
	require.NoError(t, p.Delete(ctx, schema.System, "missing", 0))
	same, _ := p.Version(ctx, schema.System)
	assert.Equal(t, after, same)

	require.NoError(t, p.Delete(ctx, schema.System, "k", 0))
	bumped, _ := p.Version(ctx, schema.System)
	assert.Equal(t, after+1, bumped)
}

func TestProviderUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	require.NoError(t, p.Put(ctx, schema.Secure, "k", "owner", 0))
	require.NoError(t, p.Put(ctx, schema.Secure, "k", "guest", 10))

	v, _, err := p.Call(ctx, schema.Secure, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, "owner", v)
	v, _, err = p.Query(ctx, schema.Secure, "k", 10)
	require.NoError(t, err)
	assert.Equal(t, "guest", v)
}

func TestProviderGlobalIsDeviceWide(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	require.NoError(t, p.Put(ctx, schema.Global, "g", "1", 10))
	v, found, err := p.Call(ctx, schema.Global, "g", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", v)

	all, err := p.List(ctx, schema.Global, 11)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"g": "1"}, all)
}

func TestProviderNotifiesObservers(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	got := make(chan schema.Change, 1)
	p.Bus().Register(schema.URI(schema.Secure, "k"), func(c schema.Change) { got <- c })

	require.NoError(t, p.Put(ctx, schema.Secure, "k", "v", 0))
	select {
	case c := <-got:
		assert.Equal(t, schema.Change{Namespace: schema.Secure, Name: "k", User: 0}, c)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestProviderBacksSettingsClient(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	s := settings.New(p, settings.Options{})

	assert.Equal(t, 0, s.System.GetIntDefault(ctx, settings.StatusBarQuickQSPulldown, -1))
	require.True(t, s.System.PutInt(ctx, settings.StatusBarQuickQSPulldown, 1))
	assert.Equal(t, 1, s.System.GetIntDefault(ctx, settings.StatusBarQuickQSPulldown, -1))

	require.True(t, s.Secure.PutInt(ctx, settings.BerryBlackTheme, 1))
	assert.Equal(t, 1, s.System.GetIntDefault(ctx, settings.BerryBlackTheme, 0))
}

// swappable lets a settings client outlive the provider behind it.
type swappable struct {
	*Provider
}

func TestProviderRestartInvalidatesClientCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{DataDir: dir, Resources: DefaultResources(), Logger: zerolog.Nop()}

	first := NewProvider(opts)
	backend := &swappable{Provider: first}
	s := settings.New(backend, settings.Options{})

	require.True(t, s.System.PutString(ctx, "k", "a"))
	v, _ := s.System.GetString(ctx, "k")
	require.Equal(t, "a", v)
	cached, err := first.Version(ctx, schema.System)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewProvider(opts)
	t.Cleanup(func() { _ = second.Close() })
	backend.Provider = second
	require.NoError(t, second.Put(ctx, schema.System, "k", "b", 0))

	restarted, err := second.Version(ctx, schema.System)
	require.NoError(t, err)
	assert.Greater(t, restarted, cached)

	v, _ = s.System.GetString(ctx, "k")
	assert.Equal(t, "b", v)
}

func TestProviderMigrateBumpsVersions(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	before, _ := p.Version(ctx, schema.Global)
	require.NoError(t, p.Migrate(ctx, 0))
	after, _ := p.Version(ctx, schema.Global)
	assert.Greater(t, after, before)
}

func TestProviderClosed(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(Options{DataDir: t.TempDir(), Resources: DefaultResources(), Logger: zerolog.Nop()})
	require.NoError(t, p.Put(ctx, schema.System, "k", "v", 0))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, _, err := p.Call(ctx, schema.System, "k", 0)
	assert.ErrorIs(t, err, ErrClosed)
}
