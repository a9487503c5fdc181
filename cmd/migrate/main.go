// Command migrate applies the BigQuery DDL under migrations/bigquery in
// version order and records each one in schema_migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/logger"
)

var (
	configPath    = flag.String("config", "", "Path to a YAML config file")
	projectID     = flag.String("project", "", "GCP project ID (defaults to BIGQUERY_PROJECT)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to BIGQUERY_DATASET)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)

	if *projectID != "" {
		cfg.Warehouse.ProjectID = *projectID
	}
	if *datasetID != "" {
		cfg.Warehouse.DatasetID = *datasetID
	}
	if err := cfg.ValidateWarehouse(); err != nil {
		log.Fatal().Err(err).Msg("Invalid warehouse configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	ws := cfg.Warehouse

	dir, err := resolveDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}
	migrations, skipped, err := readMigrations(dir, ws.ProjectID, ws.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	for _, name := range skipped {
		log.Warn().Str("file", name).Msg("Skipping file with invalid format")
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	var opts []option.ClientOption
	if ws.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(ws.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, ws.ProjectID, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", ws.ProjectID).Str("dataset", ws.DatasetID).Msg("Connected to BigQuery")

	m := &migrator{client: client, projectID: ws.ProjectID, datasetID: ws.DatasetID, appliedBy: *appliedBy}

	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, err := pending(migrations, applied)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration history does not match files")
	}

	for _, migration := range todo {
		mlog := log.With().Int("version", migration.Version).Str("name", migration.Name).Logger()
		if *dryRun {
			mlog.Info().Msg("Pending migration")
			continue
		}

		mlog.Info().Msg("Applying migration")
		if err := m.run(ctx, migration.SQL); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := m.record(ctx, migration); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}
		mlog.Info().Msg("Migration applied")
	}

	switch {
	case len(todo) == 0:
		log.Info().Msg("No new migrations to apply, dataset is up to date")
	case *dryRun:
		log.Info().Int("pending", len(todo)).Msg("Dry run, nothing applied")
	default:
		log.Info().Int("applied", len(todo)).Msg("Successfully applied migrations")
	}
}

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.run(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.table()))
}

func (m *migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table()))

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64                  `bigquery:"version"`
			Name      string                 `bigquery:"name"`
			AppliedAt bigquery.NullTimestamp `bigquery:"applied_at"`
			Checksum  bigquery.NullString    `bigquery:"checksum"`
			AppliedBy bigquery.NullString    `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt.Timestamp,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *migrator) record(ctx context.Context, migration Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return runQuery(ctx, q)
}

func (m *migrator) run(ctx context.Context, sql string) error {
	return runQuery(ctx, m.client.Query(sql))
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
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
