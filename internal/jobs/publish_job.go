package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marqetly/marqetly/internal/models"
	"github.com/marqetly/marqetly/internal/publisher"
	"github.com/marqetly/marqetly/internal/repository"
)

// PublishJob drives scheduled posts to completion. It is fed from two sides:
// the cron poll calls Run on an interval, and the queue worker calls
// ProcessPost when a post's delayed task fires. The claim update and the
// pending-only execution select make overlap between the two harmless.
type PublishJob struct {
	pr       repository.PostRepository
	er       repository.ExecutionRepository
	registry *publisher.Registry
	now      func() time.Time
}

func NewPublishJob(pr repository.PostRepository, er repository.ExecutionRepository, registry *publisher.Registry) *PublishJob {
	return &PublishJob{
		pr:       pr,
		er:       er,
		registry: registry,
		now:      time.Now,
	}
}

// Run processes every due post plus any post an earlier run claimed but left
// unresolved, and returns the number of posts handled. Per-post failures are
// recorded on the rows, never propagated; only a failure to fetch the due
// list itself is returned.
func (j *PublishJob) Run(ctx context.Context) (int, error) {
	due, err := j.pr.GetDue(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("fetching due posts: %w", err)
	}

	stalled, err := j.pr.GetProcessingWithPending(ctx)
	if err != nil {
		slog.Info(err.Error())
		stalled = nil
	}

	processed := 0
	for _, post := range append(due, stalled...) {
		if err := j.ProcessPost(ctx, post.ID); err != nil {
			slog.Info(err.Error())
		}
		processed++
	}

	return processed, nil
}

// ProcessPost claims one post and works through its pending executions. A
// post that is not yet due, already terminal, or claimed by a concurrent
// runner is skipped. An unexpected repository error marks the post failed
// and abandons its remaining executions for this run.
func (j *PublishJob) ProcessPost(ctx context.Context, postID int64) error {
	post, err := j.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("loading post %d: %w", postID, err)
	}
	if post == nil {
		return nil
	}

	switch post.Status {
	case models.PostStatusScheduled:
		if post.ScheduledTime.After(j.now()) {
			return nil
		}
		claimed, err := j.pr.Claim(ctx, post.ID)
		if err != nil {
			j.failPost(ctx, post.ID, err)
			return fmt.Errorf("claiming post %d: %w", post.ID, err)
		}
		if !claimed {
			// another runner won the claim
			return nil
		}
	case models.PostStatusProcessing:
		// re-entry after a partial run: unresolved executions are re-attempted
	default:
		return nil
	}

	pending, err := j.er.ListPending(ctx, post.ID)
	if err != nil {
		j.failPost(ctx, post.ID, err)
		return fmt.Errorf("loading executions for post %d: %w", post.ID, err)
	}

	for _, execution := range pending {
		if err := j.dispatch(ctx, post, execution); err != nil {
			j.failPost(ctx, post.ID, err)
			return fmt.Errorf("dispatching execution %d: %w", execution.ID, err)
		}
	}

	return j.resolvePost(ctx, post.ID)
}

func (j *PublishJob) dispatch(ctx context.Context, post *models.ScheduledPost, execution *models.PostExecution) error {
	pub, ok := j.registry.Lookup(execution.Platform)
	if !ok {
		// no publisher registered; leaving the row pending would starve the
		// post forever, so this is a terminal failure
		return j.er.MarkFailed(ctx, execution.ID, execution.RetryCount, "unsupported platform: "+execution.Platform)
	}

	if err := j.er.MarkProcessing(ctx, execution.ID); err != nil {
		return err
	}

	outcome := pub.Publish(ctx, post.Content)
	if outcome.Success {
		return j.er.MarkSuccess(ctx, execution.ID, outcome.ExternalID, outcome.ExternalURL, outcome.RawResponse)
	}

	slog.Info(fmt.Sprintf("publishing to %s failed for post %d: %s", execution.Platform, post.ID, outcome.ErrorMessage))

	retryCount := execution.RetryCount + 1
	if outcome.Retryable && retryCount < post.MaxRetries {
		return j.er.Requeue(ctx, execution.ID, retryCount, outcome.ErrorMessage)
	}
	return j.er.MarkFailed(ctx, execution.ID, retryCount, outcome.ErrorMessage)
}

// resolvePost derives the post status from its executions. The closure rule
// is all-must-succeed: the post is published only when every execution
// succeeded, and failed as soon as any execution failed terminally. While
// any execution is unresolved the post stays processing.
func (j *PublishJob) resolvePost(ctx context.Context, postID int64) error {
	executions, err := j.er.ListByPost(ctx, postID)
	if err != nil {
		j.failPost(ctx, postID, err)
		return fmt.Errorf("resolving post %d: %w", postID, err)
	}

	var firstFailure string
	for _, execution := range executions {
		switch execution.Status {
		case models.ExecutionStatusPending, models.ExecutionStatusProcessing:
			return nil
		case models.ExecutionStatusFailed:
			if firstFailure == "" {
				firstFailure = execution.ErrorMessage
			}
		}
	}

	if firstFailure != "" {
		return j.pr.MarkFailed(ctx, postID, firstFailure)
	}
	return j.pr.MarkPublished(ctx, postID, j.now())
}

func (j *PublishJob) failPost(ctx context.Context, postID int64, cause error) {
	if err := j.pr.MarkFailed(ctx, postID, cause.Error()); err != nil {
		slog.Info(err.Error())
	}
}
