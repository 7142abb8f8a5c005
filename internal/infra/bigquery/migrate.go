package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budgenudge/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFiles returns the embedded warehouse migrations.
func MigrationFiles() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return sub
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one versioned SQL file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// ReadMigrations loads every NNNN_name.sql file in fsys sorted by version,
// substituting {{PROJECT_ID}} and {{DATASET_ID}}. Files with other names
// are skipped. The checksum covers the file before substitution so the
// same migration applied to another dataset keeps its checksum.
func ReadMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", entry.Name(), err)
		}
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations not yet applied, plus the names of applied
// migrations whose file checksum changed since.
func Pending(all []Migration, applied []AppliedMigration) (pending []Migration, changed []string) {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}
	for _, m := range all {
		am, ok := byVersion[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			changed = append(changed, m.Filename)
		}
	}
	return pending, changed
}

// Migrate applies pending warehouse migrations in version order and
// records each in schema_migrations. It returns how many were applied.
func (w *Warehouse) Migrate(ctx context.Context, fsys fs.FS, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	migrations, err := ReadMigrations(fsys, w.projectID, w.datasetID)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	if err := w.ensureDataset(ctx); err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	if err := w.exec(ctx, schemaMigrationsDDL(w.table("schema_migrations")), nil); err != nil {
		return 0, fmt.Errorf("Migrate: ensure schema_migrations: %w", err)
	}
	applied, err := w.appliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	pending, changed := Pending(migrations, applied)
	for _, f := range changed {
		log.Warn().Str("file", f).Msg("Applied migration was modified after it ran")
	}

	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")
		if err := w.exec(ctx, m.SQL, nil); err != nil {
			return 0, fmt.Errorf("Migrate: %04d_%s: %w", m.Version, m.Name, err)
		}
		err := w.exec(ctx, `
			INSERT INTO `+w.table("schema_migrations")+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, []bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "checksum", Value: m.Checksum},
			{Name: "applied_by", Value: appliedBy},
		})
		if err != nil {
			return 0, fmt.Errorf("Migrate: record %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return len(pending), nil
}

func schemaMigrationsDDL(table string) string {
	return `
		CREATE TABLE IF NOT EXISTS ` + table + ` (
			version     INT64 NOT NULL,
			name        STRING NOT NULL,
			applied_at  TIMESTAMP NOT NULL,
			checksum    STRING,
			applied_by  STRING
		)`
}

func (w *Warehouse) ensureDataset(ctx context.Context) error {
	ds := w.client.DatasetInProject(w.projectID, w.datasetID)
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	}
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Name: w.datasetID}); err != nil {
		if strings.Contains(err.Error(), "Already Exists") {
			return nil
		}
		return fmt.Errorf("create dataset %s: %w", w.datasetID, err)
	}
	return nil
}

func (w *Warehouse) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	it, err := w.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + w.table("schema_migrations") + `
		ORDER BY version ASC
	`).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// exec runs a statement and waits for it to finish.
func (w *Warehouse) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := w.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
