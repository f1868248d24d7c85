package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/marqetly/marqetly/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	GetDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	GetProcessingWithPending(ctx context.Context) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, postID int64) (bool, error)
	MarkPublished(ctx context.Context, postID int64, publishedAt time.Time) error
	MarkFailed(ctx context.Context, postID int64, errorMessage string) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, public_id, user_id, content, platforms, scheduled_time, status, retry_count, max_retries, error_message, published_at, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (public_id, user_id, content, platforms, scheduled_time, status, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.PublicID, post.UserID, post.Content, pq.Array(post.Platforms), post.ScheduledTime, post.Status, post.MaxRetries).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.PublicID, post.UserID, post.Content, pq.Array(post.Platforms), post.ScheduledTime, post.Status, post.MaxRetries).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var errorMessage sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&post.ID,
		&post.PublicID,
		&post.UserID,
		&post.Content,
		pq.Array(&post.Platforms),
		&post.ScheduledTime,
		&post.Status,
		&post.RetryCount,
		&post.MaxRetries,
		&errorMessage,
		&publishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.ErrorMessage = errorMessage.String
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_time DESC`
	return r.queryPosts(ctx, query, userID)
}

func (r *postRepository) GetDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1 AND scheduled_time <= $2 ORDER BY scheduled_time`
	return r.queryPosts(ctx, query, models.PostStatusScheduled, now)
}

// GetProcessingWithPending returns posts a previous run claimed but did not
// fully resolve, so re-runs can finish their remaining executions.
func (r *postRepository) GetProcessingWithPending(ctx context.Context) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = $1
		AND EXISTS (
			SELECT 1 FROM post_executions
			WHERE post_executions.scheduled_post_id = scheduled_posts.id
			AND post_executions.status = $2
		)
		ORDER BY scheduled_time
	`
	return r.queryPosts(ctx, query, models.PostStatusProcessing, models.ExecutionStatusPending)
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// Claim flips a post from scheduled to processing. The status guard in the
// WHERE clause makes it a compare-and-swap: of two overlapping runs only one
// sees a row updated, so a due post is never dispatched twice.
func (r *postRepository) Claim(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusProcessing, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, postID int64, publishedAt time.Time) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, published_at = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, publishedAt, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, postID int64, errorMessage string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errorMessage, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
