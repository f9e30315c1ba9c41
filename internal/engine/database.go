package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/evervolv/evsettings/pkg/schema"
)

const (
	createTableSQL = "CREATE TABLE %s (" +
		"_id INTEGER PRIMARY KEY AUTOINCREMENT," +
		"name TEXT UNIQUE ON CONFLICT REPLACE," +
		"value TEXT" +
		");"
	createIndexSQL = "CREATE INDEX %sIndex%d ON %s (name);"
	dropTableSQL   = "DROP TABLE IF EXISTS %s;"
	dropIndexSQL   = "DROP INDEX IF EXISTS %sIndex%d;"
)

// Database is one user's settings database.
type Database struct {
	db   *sql.DB
	user schema.UserID
	path string
	res  Resources
	log  zerolog.Logger
}

// DatabasePath returns where user's database lives under dir. The primary
// user's database sits at the root; other users get their own directory.
func DatabasePath(dir string, user schema.UserID) string {
	if user == schema.UserSystem {
		return filepath.Join(dir, DatabaseName)
	}
	return filepath.Join(dir, "users", user.String(), DatabaseName)
}

// OpenDatabase opens or creates user's database under dir and brings its
// schema up to DatabaseVersion.
func OpenDatabase(ctx context.Context, dir string, user schema.UserID, res Resources, log zerolog.Logger) (*Database, error) {
	path := DatabasePath(dir, user)

	// 1. Ensure the data directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// 2. Open with a single connection so writers are serialised
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	d := &Database{
		db:   db,
		user: user,
		path: path,
		res:  res,
		log:  log.With().Str("db", path).Int("user", int(user)).Logger(),
	}

	// 3. Create or upgrade the schema
	if err := d.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) prepare(ctx context.Context) error {
	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		return d.create(ctx)
	case version < DatabaseVersion:
		return d.Upgrade(ctx, version, DatabaseVersion)
	case version > DatabaseVersion:
		return fmt.Errorf("%w: %d > %d", ErrDowngrade, version, DatabaseVersion)
	}
	return nil
}

// Path returns the database file location.
func (d *Database) Path() string { return d.path }

// User returns the owner of the database.
func (d *Database) User() schema.UserID { return d.user }

// Close closes the underlying connection pool.
func (d *Database) Close() error { return d.db.Close() }

// SchemaVersion reads the stamped schema version. Zero means a new file.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func setSchemaVersion(ctx context.Context, tx *sql.Tx, v int) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("stamp schema version %d: %w", v, err)
	}
	return nil
}

// tables lists the tables this user's database holds.
func (d *Database) tables() []schema.Namespace {
	if d.user == schema.UserSystem {
		return []schema.Namespace{schema.System, schema.Secure, schema.Global}
	}
	return []schema.Namespace{schema.System, schema.Secure}
}

func (d *Database) table(ns schema.Namespace) (string, error) {
	switch ns {
	case schema.System, schema.Secure:
		return string(ns), nil
	case schema.Global:
		if d.user != schema.UserSystem {
			return "", ErrNoGlobalTable
		}
		return string(ns), nil
	}
	return "", fmt.Errorf("unknown namespace %q", ns)
}

// create builds every table, seeds the defaults and stamps the latest
// version, all in one transaction.
func (d *Database) create(ctx context.Context) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, ns := range d.tables() {
			if err := createTable(ctx, tx, string(ns)); err != nil {
				return err
			}
		}
		if err := d.loadSettings(ctx, tx); err != nil {
			return err
		}
		if err := setSchemaVersion(ctx, tx, DatabaseVersion); err != nil {
			return err
		}
		d.log.Debug().Msg("created settings tables")
		return nil
	})
}

func createTable(ctx context.Context, tx *sql.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(createTableSQL, table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(createIndexSQL, table, 1, table)); err != nil {
		return fmt.Errorf("create index on %s: %w", table, err)
	}
	return nil
}

func dropTable(ctx context.Context, tx *sql.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(dropTableSQL, table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(dropIndexSQL, table, 1)); err != nil {
		return fmt.Errorf("drop index on %s: %w", table, err)
	}
	return nil
}

func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the value stored under name. found is false when the row is absent.
func (d *Database) Get(ctx context.Context, ns schema.Namespace, name string) (value string, found bool, err error) {
	table, err := d.table(ns)
	if err != nil {
		return "", false, err
	}
	var v sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM "+table+" WHERE name=?", name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", ns, name, err)
	}
	return v.String, true, nil
}

// Put inserts or replaces name=value.
func (d *Database) Put(ctx context.Context, ns schema.Namespace, name, value string) error {
	table, err := d.table(ns)
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, "INSERT INTO "+table+"(name,value) VALUES(?,?)", name, value); err != nil {
		return fmt.Errorf("put %s/%s: %w", ns, name, err)
	}
	return nil
}

// Delete removes name. It reports whether a row was removed.
func (d *Database) Delete(ctx context.Context, ns schema.Namespace, name string) (bool, error) {
	table, err := d.table(ns)
	if err != nil {
		return false, err
	}
	res, err := d.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE name=?", name)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", ns, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns every row of a table.
func (d *Database) List(ctx context.Context, ns schema.Namespace) (map[string]string, error) {
	table, err := d.table(ns)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, "SELECT name, value FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("list %s: %w", ns, err)
		}
		out[name] = value.String
	}
	return out, rows.Err()
}
