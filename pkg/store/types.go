// Package store tracks health-check jobs and per-cluster processing state in
// an Aerospike namespace. The store, not any in-process task handle, is the
// durable source of truth about progress.
package store

import (
	"time"

	"github.com/clusterops/aerohealth/pkg/report"
)

// JobStatus is the lifecycle of a health-check job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
)

// ResultStatus is the per-cluster state machine:
// waiting -> processing -> completed | failed.
type ResultStatus string

const (
	ResultWaiting    ResultStatus = "waiting"
	ResultProcessing ResultStatus = "processing"
	ResultCompleted  ResultStatus = "completed"
	ResultFailed     ResultStatus = "failed"
)

// RegionSpec declares how many cluster files a region is expected to upload.
type RegionSpec struct {
	Name      string `json:"name"`
	FileCount int    `json:"file_count"`
}

// Job is one customer health-check engagement.
type Job struct {
	ID          string    `json:"id"`
	Customer    string    `json:"customer_name"`
	CreatedAt   time.Time `json:"created_at"`
	RegionCount int       `json:"region_count"`
	FileCount   int       `json:"file_count"`
	Status      JobStatus `json:"status"`
}

// ClusterResult is one uploaded file's record: a placeholder until claimed,
// then the carrier of the extraction payload or failure.
type ClusterResult struct {
	Key         string                   `json:"result_key"`
	JobID       string                   `json:"job_id"`
	Region      string                   `json:"region"`
	ClusterName string                   `json:"cluster_name"`
	Filename    string                   `json:"filename,omitempty"`
	Status      ResultStatus             `json:"status"`
	Error       string                   `json:"error,omitempty"`
	Seq         int                      `json:"-"`
	CreatedAt   time.Time                `json:"created_at"`
	Payload     *report.NormalizedReport `json:"data"`
}
