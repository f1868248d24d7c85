package queue

import (
	job "github.com/marqetly/marqetly/internal/jobs"
)

type Queue struct {
	pj *job.PublishJob
}

func NewQueue(pj *job.PublishJob) *Queue {
	return &Queue{pj: pj}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
