package crisis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

const jobTTL = 24 * time.Hour

// JobStatus represents the lifecycle of an analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("crisis: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord captures the persisted state of one analysis request so callers
// can poll for the outcome. Records expire via the table TTL.
type JobRecord struct {
	JobID        string             `dynamodbav:"jobId" json:"jobId"`
	Status       JobStatus          `dynamodbav:"status" json:"status"`
	UserID       string             `dynamodbav:"userId" json:"userId"`
	SessionID    string             `dynamodbav:"sessionId,omitempty" json:"sessionId,omitempty"`
	MessageID    string             `dynamodbav:"messageId,omitempty" json:"messageId,omitempty"`
	Assessment   *OverallAssessment `dynamodbav:"assessment,omitempty" json:"assessment,omitempty"`
	ErrorMessage string             `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    string             `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string             `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt    int64              `dynamodbav:"expiresAt,omitempty" json:"-"`
}

type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

type JobUpdater interface {
	MarkCompleted(ctx context.Context, jobID string, assessment *OverallAssessment) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// JobStore persists analysis job records to DynamoDB.
type JobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ JobRecorder = (*JobStore)(nil)
var _ JobUpdater = (*JobStore)(nil)

func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("crisis: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("crisis: job table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{client: client, tableName: tableName, logger: logger}
}

// PutPending inserts a new pending job record.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("crisis: job cannot be nil")
	}
	now := time.Now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("crisis: failed to marshal job: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("crisis: failed to persist job: %w", err)
	}
	return nil
}

// MarkCompleted stores the fused assessment on the job record.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, assessment *OverallAssessment) error {
	if jobID == "" {
		return errors.New("crisis: jobID required")
	}
	if assessment == nil {
		assessment = &OverallAssessment{}
	}
	attr, err := attributevalue.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("crisis: failed to marshal assessment: %w", err)
	}

	return s.updateJob(
		ctx,
		jobID,
		map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":assessment": attr,
			":error":      &types.AttributeValueMemberS{Value: ""},
			":updated":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":     "status",
			"#assessment": "assessment",
			"#error":      "errorMessage",
			"#updated":    "updatedAt",
		},
		"SET #status = :status, #assessment = :assessment, #error = :error, #updated = :updated",
	)
}

// MarkFailed updates a job to the failed state.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("crisis: jobID required")
	}
	return s.updateJob(
		ctx,
		jobID,
		map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":assessment": &types.AttributeValueMemberNULL{Value: true},
			":error":      &types.AttributeValueMemberS{Value: errMsg},
			":updated":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":     "status",
			"#assessment": "assessment",
			"#error":      "errorMessage",
			"#updated":    "updatedAt",
		},
		"SET #status = :status, #assessment = :assessment, #error = :error, #updated = :updated",
	)
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("crisis: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("crisis: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}

	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("crisis: failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) updateJob(ctx context.Context, jobID string, values map[string]types.AttributeValue, names map[string]string, expression string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("crisis: failed to update job %s: %w", jobID, err)
	}
	return nil
}
