package model

import "time"

// GeneratedAsset points at a stored image or video and the inputs that produced it.
type GeneratedAsset struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	Operation   Operation         `db:"operation" json:"operation"`
	Prompt      string            `db:"prompt" json:"prompt"`
	SourceRefs  map[string]string `db:"source_refs" json:"source_refs,omitempty"`
	StoragePath *string           `db:"storage_path" json:"storage_path,omitempty"`
	RemoteURL   *string           `db:"remote_url" json:"remote_url,omitempty"`
	Caption     *string           `db:"caption" json:"caption,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// JobStatus tracks an asynchronous generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// GenerationJob is a long-running generation (video) processed by the orchestrator.
type GenerationJob struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"user_id"`
	Operation     Operation         `db:"operation" json:"operation"`
	Status        JobStatus         `db:"status" json:"status"`
	Prompt        string            `db:"prompt" json:"prompt"`
	SourceRefs    map[string]string `db:"source_refs" json:"source_refs,omitempty"`
	ProviderJobID *string           `db:"provider_job_id" json:"provider_job_id,omitempty"`
	ResultURL     *string           `db:"result_url" json:"result_url,omitempty"`
	Error         *string           `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}
