package job

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/marqetly/marqetly/internal/models"
	"github.com/marqetly/marqetly/internal/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostRepo struct {
	mock.Mock
}

func (m *mockPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	args := m.Called(ctx, tx, post)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduledPost), args.Error(1)
}
func (m *mockPostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledPost), args.Error(1)
}
func (m *mockPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}
func (m *mockPostRepo) GetDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledPost), args.Error(1)
}
func (m *mockPostRepo) GetProcessingWithPending(ctx context.Context) ([]*models.ScheduledPost, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledPost), args.Error(1)
}
func (m *mockPostRepo) Claim(ctx context.Context, postID int64) (bool, error) {
	args := m.Called(ctx, postID)
	return args.Bool(0), args.Error(1)
}
func (m *mockPostRepo) MarkPublished(ctx context.Context, postID int64, publishedAt time.Time) error {
	return m.Called(ctx, postID, publishedAt).Error(0)
}
func (m *mockPostRepo) MarkFailed(ctx context.Context, postID int64, errorMessage string) error {
	return m.Called(ctx, postID, errorMessage).Error(0)
}
func (m *mockPostRepo) Remove(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockExecutionRepo struct {
	mock.Mock
}

func (m *mockExecutionRepo) Create(ctx context.Context, tx *sql.Tx, execution *models.PostExecution) (int64, error) {
	args := m.Called(ctx, tx, execution)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockExecutionRepo) GetByID(ctx context.Context, id int64) (*models.PostExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostExecution), args.Error(1)
}
func (m *mockExecutionRepo) ListByPost(ctx context.Context, postID int64) ([]*models.PostExecution, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PostExecution), args.Error(1)
}
func (m *mockExecutionRepo) ListPending(ctx context.Context, postID int64) ([]*models.PostExecution, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PostExecution), args.Error(1)
}
func (m *mockExecutionRepo) MarkProcessing(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockExecutionRepo) MarkSuccess(ctx context.Context, id int64, externalPostID, externalURL, responseData string) error {
	return m.Called(ctx, id, externalPostID, externalURL, responseData).Error(0)
}
func (m *mockExecutionRepo) MarkFailed(ctx context.Context, id int64, retryCount int, errorMessage string) error {
	return m.Called(ctx, id, retryCount, errorMessage).Error(0)
}
func (m *mockExecutionRepo) Requeue(ctx context.Context, id int64, retryCount int, errorMessage string) error {
	return m.Called(ctx, id, retryCount, errorMessage).Error(0)
}

type stubPublisher struct {
	outcome publisher.Outcome
	calls   int
}

func (s *stubPublisher) Publish(context.Context, string) publisher.Outcome {
	s.calls++
	return s.outcome
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestJob(pr *mockPostRepo, er *mockExecutionRepo, registry *publisher.Registry) *PublishJob {
	j := NewPublishJob(pr, er, registry)
	j.now = func() time.Time { return testNow }
	return j
}

func duePost(id int64, maxRetries int) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:            id,
		Content:       "hello",
		Platforms:     []string{models.PlatformTwitter},
		ScheduledTime: testNow.Add(-time.Minute),
		Status:        models.PostStatusScheduled,
		MaxRetries:    maxRetries,
	}
}

func TestRunPublishesDuePost(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)
	pub := &stubPublisher{outcome: publisher.Outcome{
		Success:     true,
		ExternalID:  "123",
		ExternalURL: "https://twitter.com/i/web/status/123",
		RawResponse: `{"data":{"id":"123"}}`,
	}}
	registry := publisher.NewRegistry()
	registry.Register(models.PlatformTwitter, pub)

	post := duePost(1, 3)
	pending := &models.PostExecution{ID: 10, ScheduledPostID: 1, Platform: models.PlatformTwitter, Status: models.ExecutionStatusPending}

	pr.On("GetDue", mock.Anything, testNow).Return([]*models.ScheduledPost{post}, nil)
	pr.On("GetProcessingWithPending", mock.Anything).Return(nil, nil)
	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(true, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return([]*models.PostExecution{pending}, nil)
	er.On("MarkProcessing", mock.Anything, int64(10)).Return(nil)
	er.On("MarkSuccess", mock.Anything, int64(10), "123", "https://twitter.com/i/web/status/123", `{"data":{"id":"123"}}`).Return(nil)
	er.On("ListByPost", mock.Anything, int64(1)).Return([]*models.PostExecution{
		{ID: 10, Status: models.ExecutionStatusSuccess, ExternalPostID: "123"},
	}, nil)
	pr.On("MarkPublished", mock.Anything, int64(1), testNow).Return(nil)

	processed, err := newTestJob(pr, er, registry).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, pub.calls)
	pr.AssertExpectations(t)
	er.AssertExpectations(t)
}

// A terminally failed execution fails the post: the closure rule is
// all-must-succeed, and max_retries=1 leaves no retry budget.
func TestRunFailsPostOnTerminalPublishFailure(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)
	errMsg := `twitter api returned status 403: {"detail":"Forbidden"}`
	registry := publisher.NewRegistry()
	registry.Register(models.PlatformTwitter, &stubPublisher{outcome: publisher.Outcome{
		ErrorMessage: errMsg,
		Retryable:    true,
	}})

	post := duePost(1, 1)
	pending := &models.PostExecution{ID: 10, ScheduledPostID: 1, Platform: models.PlatformTwitter, Status: models.ExecutionStatusPending}

	pr.On("GetDue", mock.Anything, testNow).Return([]*models.ScheduledPost{post}, nil)
	pr.On("GetProcessingWithPending", mock.Anything).Return(nil, nil)
	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(true, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return([]*models.PostExecution{pending}, nil)
	er.On("MarkProcessing", mock.Anything, int64(10)).Return(nil)
	er.On("MarkFailed", mock.Anything, int64(10), 1, errMsg).Return(nil)
	er.On("ListByPost", mock.Anything, int64(1)).Return([]*models.PostExecution{
		{ID: 10, Status: models.ExecutionStatusFailed, RetryCount: 1, ErrorMessage: errMsg},
	}, nil)
	pr.On("MarkFailed", mock.Anything, int64(1), errMsg).Return(nil)

	processed, err := newTestJob(pr, er, registry).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	pr.AssertExpectations(t)
	er.AssertExpectations(t)
}

func TestRunRequeuesRetryableFailure(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)
	registry := publisher.NewRegistry()
	registry.Register(models.PlatformTwitter, &stubPublisher{outcome: publisher.Outcome{
		ErrorMessage: "twitter request failed: connection refused",
		Retryable:    true,
	}})

	post := duePost(1, 3)
	pending := &models.PostExecution{ID: 10, ScheduledPostID: 1, Platform: models.PlatformTwitter, Status: models.ExecutionStatusPending}

	pr.On("GetDue", mock.Anything, testNow).Return([]*models.ScheduledPost{post}, nil)
	pr.On("GetProcessingWithPending", mock.Anything).Return(nil, nil)
	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(true, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return([]*models.PostExecution{pending}, nil)
	er.On("MarkProcessing", mock.Anything, int64(10)).Return(nil)
	er.On("Requeue", mock.Anything, int64(10), 1, "twitter request failed: connection refused").Return(nil)
	er.On("ListByPost", mock.Anything, int64(1)).Return([]*models.PostExecution{
		{ID: 10, Status: models.ExecutionStatusPending, RetryCount: 1},
	}, nil)

	_, err := newTestJob(pr, er, registry).Run(context.Background())

	require.NoError(t, err)
	// post stays processing while the execution waits for its next attempt
	pr.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything, mock.Anything)
	pr.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	er.AssertExpectations(t)
}

func TestRunMarksUnsupportedPlatformFailed(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)
	registry := publisher.NewRegistry()

	post := duePost(1, 3)
	post.Platforms = []string{models.PlatformInstagram}
	pending := &models.PostExecution{ID: 10, ScheduledPostID: 1, Platform: models.PlatformInstagram, Status: models.ExecutionStatusPending}

	pr.On("GetDue", mock.Anything, testNow).Return([]*models.ScheduledPost{post}, nil)
	pr.On("GetProcessingWithPending", mock.Anything).Return(nil, nil)
	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(true, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return([]*models.PostExecution{pending}, nil)
	er.On("MarkFailed", mock.Anything, int64(10), 0, "unsupported platform: instagram").Return(nil)
	er.On("ListByPost", mock.Anything, int64(1)).Return([]*models.PostExecution{
		{ID: 10, Status: models.ExecutionStatusFailed, ErrorMessage: "unsupported platform: instagram"},
	}, nil)
	pr.On("MarkFailed", mock.Anything, int64(1), "unsupported platform: instagram").Return(nil)

	_, err := newTestJob(pr, er, registry).Run(context.Background())

	require.NoError(t, err)
	er.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pr.AssertExpectations(t)
	er.AssertExpectations(t)
}

func TestRunNoDuePostsIsNoOp(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	pr.On("GetDue", mock.Anything, testNow).Return(nil, nil)
	pr.On("GetProcessingWithPending", mock.Anything).Return(nil, nil)

	processed, err := newTestJob(pr, er, publisher.NewRegistry()).Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, processed)
	er.AssertNotCalled(t, "ListPending", mock.Anything, mock.Anything)
	pr.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

func TestRunSurfacesDueFetchError(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	pr.On("GetDue", mock.Anything, testNow).Return(nil, errors.New("connection reset"))

	processed, err := newTestJob(pr, er, publisher.NewRegistry()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, processed)
}

func TestProcessPostSkipsFuturePost(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	post := duePost(1, 3)
	post.ScheduledTime = testNow.Add(time.Hour)

	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)

	err := newTestJob(pr, er, publisher.NewRegistry()).ProcessPost(context.Background(), 1)

	require.NoError(t, err)
	pr.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

func TestProcessPostSkipsWhenClaimLost(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	post := duePost(1, 3)

	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(false, nil)

	err := newTestJob(pr, er, publisher.NewRegistry()).ProcessPost(context.Background(), 1)

	require.NoError(t, err)
	er.AssertNotCalled(t, "ListPending", mock.Anything, mock.Anything)
}

func TestProcessPostSkipsTerminalPost(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	post := duePost(1, 3)
	post.Status = models.PostStatusPublished

	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)

	err := newTestJob(pr, er, publisher.NewRegistry()).ProcessPost(context.Background(), 1)

	require.NoError(t, err)
	pr.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
	er.AssertNotCalled(t, "ListPending", mock.Anything, mock.Anything)
}

// An infrastructure error marks the post itself failed and abandons the
// remaining executions for this run.
func TestProcessPostInfrastructureErrorFailsPost(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)

	post := duePost(1, 3)

	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	pr.On("Claim", mock.Anything, int64(1)).Return(true, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return(nil, errors.New("relation does not exist"))
	pr.On("MarkFailed", mock.Anything, int64(1), "relation does not exist").Return(nil)

	err := newTestJob(pr, er, publisher.NewRegistry()).ProcessPost(context.Background(), 1)

	require.Error(t, err)
	pr.AssertExpectations(t)
}

// Re-entry on a post that is already processing must not re-publish resolved
// executions: only pending rows are selected, and here there are none left.
func TestProcessPostReentryIsIdempotent(t *testing.T) {
	pr := new(mockPostRepo)
	er := new(mockExecutionRepo)
	pub := &stubPublisher{outcome: publisher.Outcome{Success: true, ExternalID: "123"}}
	registry := publisher.NewRegistry()
	registry.Register(models.PlatformTwitter, pub)

	post := duePost(1, 3)
	post.Status = models.PostStatusProcessing

	pr.On("GetByID", mock.Anything, int64(1)).Return(post, nil)
	er.On("ListPending", mock.Anything, int64(1)).Return(nil, nil)
	er.On("ListByPost", mock.Anything, int64(1)).Return([]*models.PostExecution{
		{ID: 10, Status: models.ExecutionStatusSuccess, ExternalPostID: "123"},
	}, nil)
	pr.On("MarkPublished", mock.Anything, int64(1), testNow).Return(nil)

	err := newTestJob(pr, er, registry).ProcessPost(context.Background(), 1)

	require.NoError(t, err)
	assert.Zero(t, pub.calls, "resolved executions must not be published again")
	pr.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}
