package invoice

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLineNotFound is returned when no record matches (project, service).
	ErrLineNotFound = errors.New("invoice: line not found")
	// ErrLineExists is returned by Insert when the record already exists.
	ErrLineExists = errors.New("invoice: line already exists")
)

// Store persists invoice lines.
type Store interface {
	// WithTx runs fn in a transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListAll returns every line in insertion order.
	ListAll(ctx context.Context) ([]Line, error)
	// ListByProject returns the lines of one project in insertion order.
	ListByProject(ctx context.Context, projectID string) ([]Line, error)
	// DeleteProject removes every line of a project and returns the count.
	DeleteProject(ctx context.Context, projectID string) (int64, error)
}

// Tx is the transactional view of a Store.
type Tx interface {
	Get(ctx context.Context, projectID, serviceType string) (Line, error)
	Insert(ctx context.Context, line Line) error
	Update(ctx context.Context, line Line) error
}

// GetOrCreate returns the record for (projectID, serviceType), inserting a
// zero-total record priced at unitPrice when none exists. created reports
// whether this call inserted it. A concurrent insert of the same record is
// resolved by reading the winner.
func GetOrCreate(ctx context.Context, tx Tx, projectID, serviceType string, unitPrice float64) (line Line, created bool, err error) {
	line, err = tx.Get(ctx, projectID, serviceType)
	if err == nil {
		return line, false, nil
	}
	if !errors.Is(err, ErrLineNotFound) {
		return Line{}, false, err
	}

	err = tx.Insert(ctx, NewLine(projectID, serviceType, unitPrice))
	switch {
	case err == nil:
		created = true
	case errors.Is(err, ErrLineExists):
	default:
		return Line{}, false, err
	}

	line, err = tx.Get(ctx, projectID, serviceType)
	if err != nil {
		return Line{}, false, fmt.Errorf("reload %s/%s: %w", projectID, serviceType, err)
	}
	return line, created, nil
}
