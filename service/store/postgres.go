package store

import (
	"context"
	"fmt"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// NewPostgres creates a new instance of the deployment record store backed
// by Postgres.
//
// The expected table:
//
//	CREATE TABLE deployments (
//		id                   TEXT PRIMARY KEY,
//		target_kind          TEXT NOT NULL,
//		target_name          TEXT NOT NULL,
//		target_params        JSONB NOT NULL DEFAULT '{}',
//		artifact_id          TEXT NOT NULL,
//		artifact_uri         TEXT NOT NULL DEFAULT '',
//		artifact_fingerprint TEXT NOT NULL,
//		status               TEXT NOT NULL,
//		last_error           TEXT NOT NULL DEFAULT '',
//		provision            JSONB NOT NULL DEFAULT '{}',
//		upload               JSONB NOT NULL DEFAULT '{}',
//		activation           JSONB NOT NULL DEFAULT '{}',
//		last_health          TEXT NOT NULL DEFAULT '',
//		observed_at          TIMESTAMPTZ,
//		created_at           TIMESTAMPTZ NOT NULL,
//		transitions          JSONB NOT NULL DEFAULT '[]'
//	);
//	CREATE INDEX deployments_slot_idx ON deployments (target_kind, target_name);
func NewPostgres(conn *pgxpool.Pool, schema model.PgSchema) Postgres {
	return Postgres{conn: conn, schema: string(schema)}
}

// Postgres implements the deployment record store with the Postgres storage.
type Postgres struct {
	conn   *pgxpool.Pool
	schema string
}

const deploymentColumns = `"id", "target_kind", "target_name", "target_params", "artifact_id", "artifact_uri", "artifact_fingerprint",
	"status", "last_error", "provision", "upload", "activation", "last_health", "observed_at", "created_at", "transitions"`

// Upsert saves the record, replacing the stored one with the same ID.
func (p Postgres) Upsert(ctx context.Context, d model.DeploymentRecord) (model.DeploymentRecord, error) {
	q := fmt.Sprintf(
		`INSERT INTO "%s"."deployments" (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT ("id") DO UPDATE SET
			"status" = EXCLUDED."status",
			"last_error" = EXCLUDED."last_error",
			"provision" = EXCLUDED."provision",
			"upload" = EXCLUDED."upload",
			"activation" = EXCLUDED."activation",
			"last_health" = EXCLUDED."last_health",
			"observed_at" = EXCLUDED."observed_at",
			"transitions" = EXCLUDED."transitions"`,
		p.schema,
		deploymentColumns,
	)
	_, err := p.conn.Exec(
		ctx, q,
		d.ID, d.TargetKind, d.TargetName, d.TargetParams, d.ArtifactID, d.ArtifactURI, d.ArtifactFingerprint,
		d.Status, d.LastError, d.Provision, d.Upload, d.Activation, string(d.LastHealth), d.ObservedAt, d.CreatedAt, d.Transitions,
	)
	if err != nil {
		return d, fmt.Errorf("service.store.postgres.Upsert: exec: %w", err)
	}
	return d, nil
}

// Get returns the record with the specific ID.
func (p Postgres) Get(ctx context.Context, id string) (model.DeploymentRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM "%s"."deployments" WHERE "id" = $1`, deploymentColumns, p.schema)
	d, err := p.scanRow(p.conn.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return d, model.ErrNotFound
		}
		return d, fmt.Errorf("service.store.postgres.Get: query: %w", err)
	}
	return d, nil
}

// Find returns the most recent record for the target slot.
func (p Postgres) Find(ctx context.Context, kind, name string) (model.DeploymentRecord, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM "%s"."deployments"
		WHERE "target_kind" = $1 AND "target_name" = $2
		ORDER BY "created_at" DESC LIMIT 1`,
		deploymentColumns, p.schema,
	)
	d, err := p.scanRow(p.conn.QueryRow(ctx, q, kind, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return d, model.ErrNotFound
		}
		return d, fmt.Errorf("service.store.postgres.Find: query: %w", err)
	}
	return d, nil
}

// FindActive returns the record that currently owns the target slot.
func (p Postgres) FindActive(ctx context.Context, kind, name string) (model.DeploymentRecord, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM "%s"."deployments"
		WHERE "target_kind" = $1 AND "target_name" = $2 AND "status" NOT IN ($3, $4)
		ORDER BY "created_at" DESC LIMIT 1`,
		deploymentColumns, p.schema,
	)
	d, err := p.scanRow(p.conn.QueryRow(ctx, q, kind, name, model.DeploymentStatusFailed, model.DeploymentStatusTornDown))
	if err != nil {
		if err == pgx.ErrNoRows {
			return d, model.ErrNotFound
		}
		return d, fmt.Errorf("service.store.postgres.FindActive: query: %w", err)
	}
	return d, nil
}

// List returns all records ordered by creation time, newest first.
func (p Postgres) List(ctx context.Context) ([]model.DeploymentRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM "%s"."deployments" ORDER BY "created_at" DESC`, deploymentColumns, p.schema)
	rows, err := p.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service.store.postgres.List: query: %w", err)
	}
	defer rows.Close()
	res := make([]model.DeploymentRecord, 0)
	for rows.Next() {
		d, err := p.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("service.store.postgres.List: scan: %w", err)
		}
		res = append(res, d)
	}
	return res, nil
}

func (p Postgres) scanRow(row pgx.Row) (model.DeploymentRecord, error) {
	var d model.DeploymentRecord
	var lastHealth string
	err := row.Scan(
		&d.ID, &d.TargetKind, &d.TargetName, &d.TargetParams, &d.ArtifactID, &d.ArtifactURI, &d.ArtifactFingerprint,
		&d.Status, &d.LastError, &d.Provision, &d.Upload, &d.Activation, &lastHealth, &d.ObservedAt, &d.CreatedAt, &d.Transitions,
	)
	d.LastHealth = model.HealthState(lastHealth)
	return d, err
}
