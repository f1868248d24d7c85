package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marqetly/marqetly/internal/models"
	"github.com/marqetly/marqetly/internal/repository"
	"github.com/marqetly/marqetly/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const defaultMaxRetries = 3

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, []*models.PostExecution, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db *sql.DB
	pr repository.PostRepository
	er repository.ExecutionRepository
	ma repository.MediaAssetRepository
	pm repository.PostMediaRepository
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	er repository.ExecutionRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository) PostService {
	return &postService{
		db: db,
		pr: pr,
		er: er,
		ma: ma,
		pm: pm,
	}
}

// CreatePost stores the post, one pending execution per target platform and
// any media attachments in a single transaction, and returns the delay until
// the scheduled time for queueing.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, err
	}
	if pc.Content == "" {
		err := errors.New("content cannot be empty")
		slog.Info(err.Error())
		return 0, 0, err
	}

	scheduledTime, err := time.Parse("2006-01-02T15:04", pc.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return 0, 0, err
	}

	platforms, err := parsePlatforms(pc.Platforms)
	if err != nil {
		slog.Error(err.Error())
		return 0, 0, err
	}

	var assetIDs []int64
	if pc.AssetIDs != "" {
		if err := json.Unmarshal([]byte(pc.AssetIDs), &assetIDs); err != nil {
			err = fmt.Errorf("invalid asset ids format: %w", err)
			slog.Error(err.Error())
			return 0, 0, err
		}
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return 0, 0, err
	}

	maxRetries := pc.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.ScheduledPost{
		PublicID:      publicID,
		UserID:        userID,
		Content:       pc.Content,
		Platforms:     platforms,
		ScheduledTime: scheduledTime,
		Status:        models.PostStatusScheduled,
		MaxRetries:    maxRetries,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, platform := range platforms {
		execution := models.PostExecution{
			ScheduledPostID: postID,
			Platform:        platform,
		}
		if _, err = s.er.Create(ctx, tx, &execution); err != nil {
			return 0, 0, fmt.Errorf("error creating execution for %s: %w", platform, err)
		}
	}

	if err = s.attachAssets(ctx, tx, userID, postID, assetIDs); err != nil {
		return 0, 0, fmt.Errorf("error attaching media: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	delay := time.Until(scheduledTime)
	if delay < 0 {
		delay = 0
	}

	return postID, delay, nil
}

func parsePlatforms(raw string) ([]string, error) {
	var platforms []string
	if err := json.Unmarshal([]byte(raw), &platforms); err != nil {
		return nil, fmt.Errorf("invalid platforms format: %w", err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no platforms selected")
	}

	seen := make(map[string]struct{}, len(platforms))
	for _, platform := range platforms {
		if _, ok := models.SupportedPlatforms[platform]; !ok {
			return nil, fmt.Errorf("unknown platform %s", platform)
		}
		if _, dup := seen[platform]; dup {
			return nil, fmt.Errorf("platform %s listed twice", platform)
		}
		seen[platform] = struct{}{}
	}
	return platforms, nil
}

func (s *postService) attachAssets(ctx context.Context, tx *sql.Tx, userID, postID int64, assetIDs []int64) error {
	for i, assetID := range assetIDs {
		asset, err := s.ma.GetByID(ctx, assetID)
		if err != nil {
			return fmt.Errorf("error checking asset %d: %w", assetID, err)
		}
		if asset == nil || asset.UserID != userID {
			return fmt.Errorf("asset %d does not exist", assetID)
		}

		pm := models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, &pm); err != nil {
			return fmt.Errorf("error saving media attachment %d: %w", assetID, err)
		}
	}
	return nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, []*models.PostExecution, error) {
	var err error

	if userID == 0 {
		err = errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, nil, err
	}

	if postID == 0 {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting post info")
	}

	executions, err := s.er.ListByPost(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting post executions")
	}

	return post, executions, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("user is not valid")
		slog.Info(err.Error())
		return err
	}

	if postID == 0 {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	err = s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("error removing post")
	}

	return nil
}
