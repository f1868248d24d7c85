package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/marqetly/marqetly/internal/models"
)

type ExecutionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, execution *models.PostExecution) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostExecution, error)
	ListByPost(ctx context.Context, postID int64) ([]*models.PostExecution, error)
	ListPending(ctx context.Context, postID int64) ([]*models.PostExecution, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkSuccess(ctx context.Context, id int64, externalPostID, externalURL, responseData string) error
	MarkFailed(ctx context.Context, id int64, retryCount int, errorMessage string) error
	Requeue(ctx context.Context, id int64, retryCount int, errorMessage string) error
}

type executionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

const executionColumns = `id, scheduled_post_id, platform, status, retry_count, external_post_id, external_url, error_message, response_data, created_at, updated_at`

func (r *executionRepository) Create(ctx context.Context, tx *sql.Tx, execution *models.PostExecution) (int64, error) {
	query := `
		INSERT INTO post_executions (scheduled_post_id, platform, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, execution.ScheduledPostID, execution.Platform, models.ExecutionStatusPending).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, execution.ScheduledPostID, execution.Platform, models.ExecutionStatusPending).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanExecution(row interface{ Scan(...any) error }) (*models.PostExecution, error) {
	var execution models.PostExecution
	var externalPostID, externalURL, errorMessage, responseData sql.NullString

	err := row.Scan(
		&execution.ID,
		&execution.ScheduledPostID,
		&execution.Platform,
		&execution.Status,
		&execution.RetryCount,
		&externalPostID,
		&externalURL,
		&errorMessage,
		&responseData,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ExternalPostID = externalPostID.String
	execution.ExternalURL = externalURL.String
	execution.ErrorMessage = errorMessage.String
	execution.ResponseData = responseData.String
	return &execution, nil
}

func (r *executionRepository) GetByID(ctx context.Context, id int64) (*models.PostExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM post_executions WHERE id = $1`
	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return execution, nil
}

func (r *executionRepository) ListByPost(ctx context.Context, postID int64) ([]*models.PostExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM post_executions WHERE scheduled_post_id = $1 ORDER BY id`
	return r.queryExecutions(ctx, query, postID)
}

// ListPending selects only unresolved executions, which is what makes
// re-running a claimed post safe: resolved rows are never dispatched again.
func (r *executionRepository) ListPending(ctx context.Context, postID int64) ([]*models.PostExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM post_executions WHERE scheduled_post_id = $1 AND status = $2 ORDER BY id`
	return r.queryExecutions(ctx, query, postID, models.ExecutionStatusPending)
}

func (r *executionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.PostExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var executions []*models.PostExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

func (r *executionRepository) MarkProcessing(ctx context.Context, id int64) error {
	query := `UPDATE post_executions SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, models.ExecutionStatusProcessing, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *executionRepository) MarkSuccess(ctx context.Context, id int64, externalPostID, externalURL, responseData string) error {
	query := `
		UPDATE post_executions
		SET status = $1, external_post_id = $2, external_url = $3, response_data = $4, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.ExecutionStatusSuccess, externalPostID, externalURL, responseData, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *executionRepository) MarkFailed(ctx context.Context, id int64, retryCount int, errorMessage string) error {
	query := `
		UPDATE post_executions
		SET status = $1, retry_count = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.ExecutionStatusFailed, retryCount, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Requeue records a retryable failure and puts the execution back to pending
// so a later run attempts it again.
func (r *executionRepository) Requeue(ctx context.Context, id int64, retryCount int, errorMessage string) error {
	query := `
		UPDATE post_executions
		SET status = $1, retry_count = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.ExecutionStatusPending, retryCount, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
