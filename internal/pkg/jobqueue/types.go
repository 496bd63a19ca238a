package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeBlobDelete removes one uploaded object after its metadata was extracted
	JobTypeBlobDelete JobType = "blob_delete"
	// JobTypeBlobSweep removes every upload older than the retention window
	JobTypeBlobSweep JobType = "blob_sweep"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// BlobDeleteJobPayload names the object to remove
type BlobDeleteJobPayload struct {
	ObjectKey string `json:"object_key"`
	Reason    string `json:"reason,omitempty"`
}

func (p BlobDeleteJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"object_key": p.ObjectKey,
	}
	if p.Reason != "" {
		m["reason"] = p.Reason
	}
	return m
}

func BlobDeleteJobPayloadFromMap(data map[string]interface{}) (*BlobDeleteJobPayload, error) {
	var payload BlobDeleteJobPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// BlobSweepJobPayload records what triggered a sweep (ticker or manual)
type BlobSweepJobPayload struct {
	Trigger string `json:"trigger"`
}

func (p BlobSweepJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"trigger": p.Trigger,
	}
}

func BlobSweepJobPayloadFromMap(data map[string]interface{}) (*BlobSweepJobPayload, error) {
	var payload BlobSweepJobPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// decodePayload round-trips the generic payload map through JSON into a typed struct
func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records the error and counts the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
