package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"accounter.org/internal/obs"
)

//go:embed sql/*.sql
var embedded embed.FS

// Embedded returns the schema migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Migration is one versioned schema step. Name is the up file name, which is also
// the key recorded in the bookkeeping table.
type Migration struct {
	Name string
	up   string
	down string
}

// Load pairs the up and down scripts found at the root of fsys, ordered by name.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	downs := make(map[string]string)
	var out []Migration
	for _, e := range entries {
		switch name := e.Name(); {
		case e.IsDir():
		case strings.HasSuffix(name, upSuffix):
			out = append(out, Migration{Name: name, up: name})
		case strings.HasSuffix(name, downSuffix):
			downs[strings.TrimSuffix(name, downSuffix)+upSuffix] = name
		}
	}
	for i := range out {
		out[i].down = downs[out[i].Name]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Manager applies and rolls back migrations, one transaction per step.
type Manager struct {
	db     *sql.DB
	source fs.FS
	table  string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the bookkeeping table (default schema_migrations).
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

func NewManager(db *sql.DB, source fs.FS, opts ...Option) *Manager {
	m := &Manager{db: db, source: source, table: "schema_migrations"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every migration not yet recorded and returns their names.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	applied, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	all, err := Load(m.source)
	if err != nil {
		return nil, err
	}
	var ran []string
	for _, mig := range all {
		if done[mig.Name] {
			continue
		}
		record := fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, m.table)
		if err := m.step(ctx, mig.up, record, mig.Name, time.Now().UTC()); err != nil {
			return ran, fmt.Errorf("apply %s: %w", mig.Name, err)
		}
		obs.Logger().Info().Str("migration", mig.Name).Msg("migration applied")
		ran = append(ran, mig.Name)
	}
	return ran, nil
}

// Down rolls back the most recently applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	applied, err := m.Status(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", fmt.Errorf("no migrations applied")
	}
	last := applied[len(applied)-1]
	all, err := Load(m.source)
	if err != nil {
		return "", err
	}
	i := sort.Search(len(all), func(i int) bool { return all[i].Name >= last })
	if i == len(all) || all[i].Name != last || all[i].down == "" {
		return "", fmt.Errorf("no down script for %s", last)
	}
	forget := fmt.Sprintf(`delete from %s where name = $1`, m.table)
	if err := m.step(ctx, all[i].down, forget, last); err != nil {
		return "", fmt.Errorf("roll back %s: %w", last, err)
	}
	obs.Logger().Info().Str("migration", last).Msg("migration rolled back")
	return last, nil
}

// Status lists applied migrations in the order they ran.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	ddl := fmt.Sprintf(`create table if not exists %s (
		name text primary key,
		applied_at timestamptz not null default now()
	)`, m.table)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create %s: %w", m.table, err)
	}
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by applied_at, name`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// step runs a script and its bookkeeping statement atomically.
func (m *Manager) step(ctx context.Context, script, bookkeeping string, args ...any) error {
	body, err := fs.ReadFile(m.source, script)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements cuts a script at semicolons outside single-quoted literals and
// drops blank statements.
func splitStatements(script string) []string {
	var (
		out     []string
		start   int
		inQuote bool
	)
	flush := func(end int) {
		if stmt := strings.TrimSpace(script[start:end]); stmt != "" {
			out = append(out, stmt)
		}
		start = end
	}
	for i, r := range script {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			flush(i + 1)
		}
	}
	flush(len(script))
	return out
}
