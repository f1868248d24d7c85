package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	// Outcome bookkeeping lives on the rows; the task itself never retries a
	// post the pipeline already resolved.
	if err := q.pj.ProcessPost(ctx, payload.PostID); err != nil {
		slog.Info(err.Error())
	}

	return nil
}
