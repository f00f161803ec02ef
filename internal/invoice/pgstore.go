package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lineColumns = `project_id, service_type, service_sample_number, service_sample_price, total_price,
	discount_sample_number, discount_sample_amount, discount_reason, total_discount, created_at, updated_at`

// PGStore stores invoice lines in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithTx implements Store.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListAll implements Store.
func (s *PGStore) ListAll(ctx context.Context) ([]Line, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lineColumns+` FROM invoice_lines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	return collectLines(rows)
}

// ListByProject implements Store.
func (s *PGStore) ListByProject(ctx context.Context, projectID string) ([]Line, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lineColumns+` FROM invoice_lines WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines for %s: %w", projectID, err)
	}
	return collectLines(rows)
}

// DeleteProject implements Store.
func (s *PGStore) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invoice_lines WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete invoice lines for %s: %w", projectID, err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Get(ctx context.Context, projectID, serviceType string) (Line, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM invoice_lines
		WHERE project_id = $1 AND service_type = $2
		FOR UPDATE`, projectID, serviceType)
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	if err != nil {
		return Line{}, fmt.Errorf("get invoice line %s/%s: %w", projectID, serviceType, err)
	}
	return line, nil
}

// Insert uses ON CONFLICT so a lost race leaves the transaction usable.
func (t pgTx) Insert(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `INSERT INTO invoice_lines (
			project_id, service_type, service_sample_number, service_sample_price, total_price,
			discount_sample_number, discount_sample_amount, discount_reason, total_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id, service_type) DO NOTHING`,
		l.ProjectID, l.ServiceType, l.ServiceSampleNumber, l.ServiceSamplePrice, l.TotalPrice,
		l.DiscountSampleNumber, l.DiscountSampleAmount, l.DiscountReason, l.TotalDiscount)
	if err != nil {
		return fmt.Errorf("insert invoice line %s/%s: %w", l.ProjectID, l.ServiceType, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineExists
	}
	return nil
}

func (t pgTx) Update(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoice_lines SET
			service_sample_number = $3,
			service_sample_price = $4,
			total_price = $5,
			discount_sample_number = $6,
			discount_sample_amount = $7,
			discount_reason = $8,
			total_discount = $9,
			updated_at = now()
		WHERE project_id = $1 AND service_type = $2`,
		l.ProjectID, l.ServiceType, l.ServiceSampleNumber, l.ServiceSamplePrice, l.TotalPrice,
		l.DiscountSampleNumber, l.DiscountSampleAmount, l.DiscountReason, l.TotalDiscount)
	if err != nil {
		return fmt.Errorf("update invoice line %s/%s: %w", l.ProjectID, l.ServiceType, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(
		&l.ProjectID, &l.ServiceType, &l.ServiceSampleNumber, &l.ServiceSamplePrice, &l.TotalPrice,
		&l.DiscountSampleNumber, &l.DiscountSampleAmount, &l.DiscountReason, &l.TotalDiscount,
		&l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func collectLines(rows pgx.Rows) ([]Line, error) {
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		return scanLine(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan invoice lines: %w", err)
	}
	return lines, nil
}
