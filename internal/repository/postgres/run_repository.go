package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/repository"
)

type runRepository struct {
	db *DB
}

// NewRunRepository returns a Postgres-backed run repository
func NewRunRepository(db *DB) repository.RunRepository {
	return &runRepository{db: db}
}

// resultRow is one forecast_results record. Failed products leave the numeric
// columns NULL and fill error_kind.
type resultRow struct {
	ProductName  string          `db:"product_name"`
	MAE          sql.NullFloat64 `db:"mae"`
	ReorderPoint sql.NullInt64   `db:"reorder_point"`
	CurrentStock sql.NullInt64   `db:"current_stock"`
	Status       sql.NullString  `db:"status"`
	ErrorKind    sql.NullString  `db:"error_kind"`
	ErrorMessage sql.NullString  `db:"error_message"`
}

func (r *runRepository) CreateRun(ctx context.Context, run *domain.ForecastRun) error {
	query := `
		INSERT INTO forecast_runs (
			id, filename, payload_sha1, status, product_count,
			failed_count, started_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Filename, run.PayloadSHA1, run.Status, run.ProductCount,
		run.FailedCount, run.StartedAt, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert forecast run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun updates the run row and writes every product outcome in one transaction
func (r *runRepository) CompleteRun(ctx context.Context, run *domain.ForecastRun) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		update := `
			UPDATE forecast_runs
			SET status = $1, product_count = $2, failed_count = $3,
			    completed_at = $4, error_message = $5
			WHERE id = $6
		`
		if _, err := tx.ExecContext(ctx, update,
			run.Status, run.ProductCount, run.FailedCount,
			run.CompletedAt, run.ErrorMessage, run.ID,
		); err != nil {
			return fmt.Errorf("update forecast run %s: %w", run.ID, err)
		}

		if len(run.Report) == 0 {
			return nil
		}

		insert := `
			INSERT INTO forecast_results (
				run_id, product_name, mae, reorder_point, current_stock,
				status, error_kind, error_message
			) VALUES (
				:run_id, :product_name, :mae, :reorder_point, :current_stock,
				:status, :error_kind, :error_message
			)
			ON CONFLICT (run_id, product_name) DO NOTHING
		`
		for product, outcome := range run.Report {
			row := toResultRow(product, outcome)
			args := map[string]interface{}{
				"run_id":        run.ID,
				"product_name":  row.ProductName,
				"mae":           row.MAE,
				"reorder_point": row.ReorderPoint,
				"current_stock": row.CurrentStock,
				"status":        row.Status,
				"error_kind":    row.ErrorKind,
				"error_message": row.ErrorMessage,
			}
			if _, err := tx.NamedExecContext(ctx, insert, args); err != nil {
				return fmt.Errorf("insert result for %s: %w", product, err)
			}
		}
		return nil
	})
}

func (r *runRepository) GetRun(ctx context.Context, id string) (*domain.ForecastRun, error) {
	query := `
		SELECT id, filename, payload_sha1, status, product_count,
		       failed_count, started_at, completed_at, error_message
		FROM forecast_runs
		WHERE id = $1
	`

	run := &domain.ForecastRun{}
	if err := r.db.GetContext(ctx, run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrRunNotFound
		}
		return nil, fmt.Errorf("get forecast run %s: %w", id, err)
	}

	var rows []resultRow
	results := `
		SELECT product_name, mae, reorder_point, current_stock,
		       status, error_kind, error_message
		FROM forecast_results
		WHERE run_id = $1
		ORDER BY product_name
	`
	if err := r.db.SelectContext(ctx, &rows, results, id); err != nil {
		return nil, fmt.Errorf("get results for run %s: %w", id, err)
	}

	run.Report = make(domain.Report, len(rows))
	for _, row := range rows {
		run.Report[row.ProductName] = fromResultRow(row)
	}

	return run, nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]*domain.ForecastRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, filename, payload_sha1, status, product_count,
		       failed_count, started_at, completed_at, error_message
		FROM forecast_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	var runs []*domain.ForecastRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list forecast runs: %w", err)
	}
	return runs, nil
}

func toResultRow(product string, o domain.ProductOutcome) resultRow {
	row := resultRow{ProductName: product}
	if o.Err != nil {
		row.ErrorKind = sql.NullString{String: string(o.Err.Kind), Valid: true}
		row.ErrorMessage = sql.NullString{String: o.Err.Message, Valid: true}
		return row
	}
	if o.Result != nil {
		row.MAE = sql.NullFloat64{Float64: o.Result.MAE, Valid: true}
		row.ReorderPoint = sql.NullInt64{Int64: int64(o.Result.ReorderPoint), Valid: true}
		row.CurrentStock = sql.NullInt64{Int64: int64(o.Result.CurrentStock), Valid: true}
		row.Status = sql.NullString{String: o.Result.Status.String(), Valid: true}
	}
	return row
}

func fromResultRow(row resultRow) domain.ProductOutcome {
	if row.ErrorKind.Valid {
		return domain.Failed(&domain.ProductError{
			Kind:    domain.ErrorKind(row.ErrorKind.String),
			Product: row.ProductName,
			Message: row.ErrorMessage.String,
		})
	}
	status, _ := domain.ParseStatus(row.Status.String)
	return domain.Succeeded(domain.ForecastResult{
		MAE:          row.MAE.Float64,
		ReorderPoint: int(row.ReorderPoint.Int64),
		CurrentStock: int(row.CurrentStock.Int64),
		Status:       status,
	})
}
