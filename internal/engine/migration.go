package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

type upgradeStep struct {
	to    int
	apply func(ctx context.Context, tx *sql.Tx) error
}

func (d *Database) steps() []upgradeStep {
	return []upgradeStep{
		{to: 2, apply: d.loadSettings},
		{to: 3, apply: d.rescaleButtonBrightness},
		{to: 4, apply: d.moveBerryBlackTheme},
		{to: 5, apply: d.flipSfpsAuth},
	}
}

// Upgrade walks the database from oldVersion towards newVersion. Each step
// commits on its own and stamps the version it reached. If the walk cannot
// reach newVersion the tables are dropped and recreated with defaults.
func (d *Database) Upgrade(ctx context.Context, oldVersion, newVersion int) error {
	d.log.Debug().Int("from", oldVersion).Int("to", newVersion).Msg("upgrading settings database")
	version := oldVersion

	for _, step := range d.steps() {
		if step.to <= version {
			continue
		}
		if step.to > newVersion {
			break
		}
		err := d.inTx(ctx, func(tx *sql.Tx) error {
			if err := step.apply(ctx, tx); err != nil {
				return err
			}
			return setSchemaVersion(ctx, tx, step.to)
		})
		if err != nil {
			d.log.Error().Err(err).Int("step", step.to).Msg("upgrade step failed")
			break
		}
		version = step.to
	}

	if version < newVersion {
		d.log.Error().Int("old", oldVersion).Int("stuck", version).Int("new", newVersion).
			Msg("got stuck trying to upgrade db, wiping the settings provider")
		return d.reset(ctx)
	}
	return nil
}

// reset drops every table and index and recreates the schema from scratch.
func (d *Database) reset(ctx context.Context) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for _, ns := range d.tables() {
			if err := dropTable(ctx, tx, string(ns)); err != nil {
				return err
			}
		}
		return setSchemaVersion(ctx, tx, 0)
	})
	if err != nil {
		return fmt.Errorf("reset settings database: %w", err)
	}
	return d.create(ctx)
}

// loadSettings seeds the defaults without touching rows that already exist.
func (d *Database) loadSettings(ctx context.Context, tx *sql.Tx) error {
	r := d.res

	system := [][2]string{
		{settings.StatusBarQuickQSPulldown, strconv.Itoa(r.QSQuickPulldown)},
		{settings.BatteryLightBrightnessLevel, strconv.Itoa(r.BatteryBrightnessLevel)},
		{settings.BatteryLightBrightnessLevelZen, strconv.Itoa(r.BatteryBrightnessLevelZen)},
		{settings.NotificationLightBrightnessLevel, strconv.Itoa(r.NotificationBrightnessLevel)},
		{settings.NotificationLightBrightnessLevelZen, strconv.Itoa(r.NotificationBrightnessLevelZen)},
		{settings.NotificationLightPulseCustomEnable, boolValue(r.NotificationPulseCustomEnable)},
	}
	if r.NotificationPulseCustomEnable {
		system = append(system, [2]string{settings.NotificationLightPulseCustomValues, r.NotificationPulseCustomValue})
	}
	system = append(system,
		[2]string{settings.StatusBarBatteryStyle, strconv.Itoa(r.BatteryStyle)},
		[2]string{settings.LockscreenRotation, boolValue(r.LockscreenRotation)},
	)

	secure := [][2]string{
		{settings.DevForceShowNavbar, strconv.Itoa(r.ForceShowNavbar)},
		{settings.LockscreenVisualizerEnabled, boolValue(r.LockscreenVisualizer)},
		{settings.LockscreenMediaMetadata, boolValue(r.LockscreenMediaMetadata)},
		{settings.VolumePanelOnLeft, boolValue(r.VolumePanelOnLeft)},
	}

	if err := insertDefaults(ctx, tx, schema.System, system); err != nil {
		return err
	}
	if err := insertDefaults(ctx, tx, schema.Secure, secure); err != nil {
		return err
	}
	// The global table has no seeded rows yet.
	return nil
}

func insertDefaults(ctx context.Context, tx *sql.Tx, ns schema.Namespace, rows [][2]string) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO "+string(ns)+"(name,value) VALUES(?,?)")
	if err != nil {
		return fmt.Errorf("prepare %s defaults: %w", ns, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row[0], row[1]); err != nil {
			return fmt.Errorf("load default %s/%s: %w", ns, row[0], err)
		}
	}
	return nil
}

// rescaleButtonBrightness converts the primary user's button brightness from
// the 0-255 scale to a two-decimal fraction. Only bare integers are touched,
// so a value that was already rescaled stays as it is.
func (d *Database) rescaleButtonBrightness(ctx context.Context, tx *sql.Tx) error {
	if d.user != schema.UserSystem {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE system SET value=round(value / 255.0, 2) WHERE name=? AND value <> '' AND value NOT GLOB '*[^0-9]*'",
		settings.ButtonBrightness)
	if err != nil {
		return fmt.Errorf("rescale %s: %w", settings.ButtonBrightness, err)
	}
	return nil
}

func (d *Database) moveBerryBlackTheme(ctx context.Context, tx *sql.Tx) error {
	return moveSettings(ctx, tx, schema.System, schema.Secure, []string{settings.BerryBlackTheme}, true)
}

// moveSettings copies names from src to dst and removes them from src. With
// ignoreExisting a row already present in dst wins over the moved one.
func moveSettings(ctx context.Context, tx *sql.Tx, src, dst schema.Namespace, names []string, ignoreExisting bool) error {
	verb := "INSERT"
	if ignoreExisting {
		verb = "INSERT OR IGNORE"
	}
	insert := verb + " INTO " + string(dst) + " (name,value) SELECT name,value FROM " + string(src) + " WHERE name=?"
	remove := "DELETE FROM " + string(src) + " WHERE name=?"

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, insert, name); err != nil {
			return fmt.Errorf("copy %s from %s to %s: %w", name, src, dst, err)
		}
		if _, err := tx.ExecContext(ctx, remove, name); err != nil {
			return fmt.Errorf("remove %s from %s: %w", name, src, err)
		}
	}
	return nil
}

// flipSfpsAuth carries the retired "require screen on" flag over to its
// inverse, sfps_performant_auth_enabled. An existing value is kept.
func (d *Database) flipSfpsAuth(ctx context.Context, tx *sql.Tx) error {
	old := 1
	if d.res.FingerprintWakeAndUnlock {
		old = 0
	}

	var v sql.NullString
	err := tx.QueryRowContext(ctx, "SELECT value FROM secure WHERE name=?",
		settings.SfpsRequireScreenOnToAuthEnabled).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read %s: %w", settings.SfpsRequireScreenOnToAuthEnabled, err)
	default:
		if n, perr := strconv.Atoi(v.String); perr == nil {
			old = n
		}
	}

	flipped := "1"
	if old == 1 {
		flipped = "0"
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO secure(name,value) VALUES(?,?)",
		settings.SfpsPerformantAuthEnabled, flipped); err != nil {
		return fmt.Errorf("write %s: %w", settings.SfpsPerformantAuthEnabled, err)
	}
	return nil
}
