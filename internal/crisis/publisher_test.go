package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureQueue struct {
	bodies []string
	err    error
}

func (q *captureQueue) Send(_ context.Context, body string) error {
	if q.err != nil {
		return q.err
	}
	q.bodies = append(q.bodies, body)
	return nil
}

func (q *captureQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	return nil, nil
}

func (q *captureQueue) Delete(context.Context, string) error { return nil }

func (q *captureQueue) lastJob(t *testing.T) queueJob {
	t.Helper()
	require.NotEmpty(t, q.bodies)
	var job queueJob
	require.NoError(t, json.Unmarshal([]byte(q.bodies[len(q.bodies)-1]), &job))
	return job
}

func TestPublisher_EnqueueAnalysis(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	jobID, err := p.EnqueueAnalysis(context.Background(), "", AnalyzeRequest{
		UserID:    "user-1",
		SessionID: "sess-1",
		Message:   "rough day",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	job := queue.lastJob(t)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, jobAnalyze, job.Kind)
	require.NotNil(t, job.Analyze)
	assert.Equal(t, "user-1", job.Analyze.UserID)
	assert.Nil(t, job.Resources)
	assert.Nil(t, job.Alert)
}

func TestPublisher_EnqueueAnalysis_KeepsCallerJobID(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	jobID, err := p.EnqueueAnalysis(context.Background(), "caller-chosen", AnalyzeRequest{
		UserID:  "user-1",
		Message: "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, "caller-chosen", jobID)
}

func TestPublisher_EnqueueAnalysis_Validation(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	_, err := p.EnqueueAnalysis(context.Background(), "", AnalyzeRequest{Message: "hi"})
	assert.ErrorContains(t, err, "user id")

	_, err = p.EnqueueAnalysis(context.Background(), "", AnalyzeRequest{UserID: "user-1"})
	assert.ErrorContains(t, err, "message")

	assert.Empty(t, queue.bodies)
}

func TestPublisher_EnqueueResourceDelivery(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	_, err := p.EnqueueResourceDelivery(context.Background(), ResourceJob{})
	assert.ErrorContains(t, err, "user id")

	jobID, err := p.EnqueueResourceDelivery(context.Background(), ResourceJob{
		UserID:    "user-1",
		RiskLevel: RiskHigh,
		Region:    "us",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	job := queue.lastJob(t)
	assert.Equal(t, jobDeliverResources, job.Kind)
	require.NotNil(t, job.Resources)
	assert.Equal(t, RiskHigh, job.Resources.RiskLevel)
}

func TestPublisher_EnqueueProfessionalAlert(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	_, err := p.EnqueueProfessionalAlert(context.Background(), AlertJob{UserID: "user-1"})
	assert.ErrorContains(t, err, "crisis event id")

	_, err = p.EnqueueProfessionalAlert(context.Background(), AlertJob{
		CrisisEventID: "evt-1",
		UserID:        "user-1",
		RiskLevel:     RiskCritical,
	})
	require.NoError(t, err)

	job := queue.lastJob(t)
	assert.Equal(t, jobAlertProfessional, job.Kind)
	require.NotNil(t, job.Alert)
	assert.Equal(t, "evt-1", job.Alert.CrisisEventID)
}

func TestPublisher_EnqueueArchive(t *testing.T) {
	queue := &captureQueue{}
	p := NewPublisher(queue, nil)

	_, err := p.EnqueueArchive(context.Background(), ArchiveJob{})
	assert.ErrorContains(t, err, "assessment id")

	_, err = p.EnqueueArchive(context.Background(), ArchiveJob{AssessmentID: "assess-1", UserID: "user-1"})
	require.NoError(t, err)

	job := queue.lastJob(t)
	assert.Equal(t, jobArchiveEvent, job.Kind)
	require.NotNil(t, job.Archive)
}

func TestPublisher_SendFailure(t *testing.T) {
	queue := &captureQueue{err: errors.New("queue unavailable")}
	p := NewPublisher(queue, nil)

	_, err := p.EnqueueAnalysis(context.Background(), "", AnalyzeRequest{
		UserID:  "user-1",
		Message: "hello",
	})

	assert.ErrorContains(t, err, "queue unavailable")
}
