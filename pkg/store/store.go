package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/constants"
	"github.com/clusterops/aerohealth/pkg/report"
)

// ErrNotFound is returned for lookups of jobs or results that do not exist.
var ErrNotFound = errors.New("record not found")

// Store is the multi-tenant result store contract.
type Store interface {
	CreateJob(customer string, regions []RegionSpec) (*Job, error)
	GetJob(id string) (*Job, error)
	ListJobs() ([]*Job, error)
	UpdateJobStatus(id string, status JobStatus) error
	RefreshJobStatus(id string) error
	DeleteJob(id string) error

	ClaimPlaceholder(jobID, region, filename string) (*ClusterResult, error)
	CompleteResult(key string, clusterName string, rep *report.NormalizedReport) error
	FailResult(key string, message string) error
	GetResult(key string) (*ClusterResult, error)
	ListResultsByJob(jobID string) ([]*ClusterResult, error)

	Ping() error
	Close()
}

type kvStore struct {
	kv        kvClient
	jobSet    string
	resultSet string

	// serializes placeholder claiming within this process
	claimMu sync.Mutex
}

// New connects to Aerospike and returns the store. Connection failure is
// fatal to the caller; there is no degraded mode.
func New(host string, port int, namespace string) (Store, error) {
	if namespace == "" {
		namespace = constants.StoreNamespace
	}
	kv, err := newAerospikeKV(host, port, namespace)
	if err != nil {
		return nil, err
	}
	return &kvStore{kv: kv, jobSet: constants.JobSet, resultSet: constants.ResultSet}, nil
}

// NewInMemory returns a store backed by process memory. Test support only.
func NewInMemory() Store {
	return &kvStore{kv: newMemKV(), jobSet: constants.JobSet, resultSet: constants.ResultSet}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "customer"
	}
	return slug
}

func (s *kvStore) CreateJob(customer string, regions []RegionSpec) (*Job, error) {
	if customer == "" {
		return nil, errors.New("customer name is required")
	}
	if len(regions) == 0 {
		return nil, errors.New("at least one region is required")
	}

	job := &Job{
		ID:          fmt.Sprintf("hc_%d_%s", time.Now().Unix(), slugify(customer)),
		Customer:    customer,
		CreatedAt:   time.Now().UTC(),
		RegionCount: len(regions),
		Status:      JobProcessing,
	}
	for _, r := range regions {
		job.FileCount += r.FileCount
	}

	if err := s.putJob(job); err != nil {
		return nil, err
	}

	// Eager placeholders let consumers observe expected-vs-actual progress
	// from the moment the job exists.
	for _, r := range regions {
		for i := 0; i < r.FileCount; i++ {
			placeholder := &ClusterResult{
				Key:         s.resultKey(job.ID, r.Name, fmt.Sprintf("cluster-%d", i+1)),
				JobID:       job.ID,
				Region:      r.Name,
				ClusterName: fmt.Sprintf("Cluster %d", i+1),
				Status:      ResultWaiting,
				Seq:         i,
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.putResult(placeholder); err != nil {
				return nil, errors.Wrapf(err, "failed to create placeholder for region %s", r.Name)
			}
		}
	}

	klog.V(1).Infof("created job %s with %d placeholder(s) across %d region(s)", job.ID, job.FileCount, job.RegionCount)
	return job, nil
}

// resultKey derives a deterministic key, disambiguated with a ksuid suffix
// when a collision already holds the slot.
func (s *kvStore) resultKey(jobID, region, cluster string) string {
	base := fmt.Sprintf("%s_%s_%s", jobID, slugify(region), slugify(cluster))
	if _, found, err := s.kv.get(s.resultSet, base); err == nil && !found {
		return base
	}
	return fmt.Sprintf("%s_%s", base, ksuid.New().String()[:8])
}

func (s *kvStore) GetJob(id string) (*Job, error) {
	bins, found, err := s.kv.get(s.jobSet, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	return jobFromBins(bins), nil
}

func (s *kvStore) ListJobs() ([]*Job, error) {
	records, err := s.kv.scan(s.jobSet)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(records))
	for _, bins := range records {
		jobs = append(jobs, jobFromBins(bins))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *kvStore) UpdateJobStatus(id string, status JobStatus) error {
	job, err := s.GetJob(id)
	if err != nil {
		return err
	}
	job.Status = status
	return s.putJob(job)
}

// RefreshJobStatus marks the job completed once no child is still waiting or
// processing.
func (s *kvStore) RefreshJobStatus(id string) error {
	results, err := s.ListResultsByJob(id)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == ResultWaiting || r.Status == ResultProcessing {
			return nil
		}
	}
	return s.UpdateJobStatus(id, JobCompleted)
}

// DeleteJob removes a job and all of its cluster results. Children go first
// so an interruption can orphan children but never leave a parent pointing at
// guaranteed-missing data.
func (s *kvStore) DeleteJob(id string) error {
	if _, err := s.GetJob(id); err != nil {
		return err
	}

	results, err := s.ListResultsByJob(id)
	if err != nil {
		return errors.Wrap(err, "failed to list cluster results for deletion")
	}

	var merr *multierror.Error
	for _, r := range results {
		if err := s.kv.del(s.resultSet, r.Key); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "failed to delete cluster results; job record kept")
	}

	klog.V(1).Infof("deleted %d cluster result(s) for job %s", len(results), id)
	return s.kv.del(s.jobSet, id)
}

// ClaimPlaceholder hands an arriving upload the next unclaimed waiting
// placeholder in its region, by placeholder order. When a batch oversubscribes
// the declared file count, a fresh processing entry is created rather than
// rejecting the file.
func (s *kvStore) ClaimPlaceholder(jobID, region, filename string) (*ClusterResult, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	if _, err := s.GetJob(jobID); err != nil {
		return nil, err
	}

	results, err := s.ListResultsByJob(jobID)
	if err != nil {
		return nil, err
	}

	var candidate *ClusterResult
	for _, r := range results {
		if r.Region != region || r.Status != ResultWaiting {
			continue
		}
		if candidate == nil || r.Seq < candidate.Seq {
			candidate = r
		}
	}

	if candidate == nil {
		candidate = &ClusterResult{
			Key:       s.resultKey(jobID, region, strings.TrimSuffix(filename, ".tgz")),
			JobID:     jobID,
			Region:    region,
			CreatedAt: time.Now().UTC(),
			Seq:       len(results),
		}
		klog.V(1).Infof("job %s region %s oversubscribed, creating extra entry %s", jobID, region, candidate.Key)
	}

	candidate.Status = ResultProcessing
	candidate.Filename = filename
	if candidate.ClusterName == "" {
		candidate.ClusterName = filename
	}
	if err := s.putResult(candidate); err != nil {
		return nil, errors.Wrap(err, "failed to claim placeholder")
	}
	return candidate, nil
}

func (s *kvStore) CompleteResult(key string, clusterName string, rep *report.NormalizedReport) error {
	return s.finishResult(key, func(r *ClusterResult) {
		r.Status = ResultCompleted
		r.Error = ""
		r.Payload = rep
		if clusterName != "" {
			r.ClusterName = clusterName
		}
	})
}

func (s *kvStore) FailResult(key string, message string) error {
	return s.finishResult(key, func(r *ClusterResult) {
		r.Status = ResultFailed
		r.Error = message
		r.Payload = nil
	})
}

// finishResult applies a terminal transition exactly once: a result already
// completed or failed is left alone (last-write-wins races resolve to the
// first terminal writer).
func (s *kvStore) finishResult(key string, mutate func(*ClusterResult)) error {
	r, err := s.GetResult(key)
	if err != nil {
		return err
	}
	if r.Status == ResultCompleted || r.Status == ResultFailed {
		klog.V(1).Infof("result %s already terminal (%s), skipping transition", key, r.Status)
		return nil
	}
	mutate(r)
	return s.putResult(r)
}

func (s *kvStore) GetResult(key string) (*ClusterResult, error) {
	bins, found, err := s.kv.get(s.resultSet, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "cluster result %s", key)
	}
	return resultFromBins(bins), nil
}

func (s *kvStore) ListResultsByJob(jobID string) ([]*ClusterResult, error) {
	records, err := s.kv.scan(s.resultSet)
	if err != nil {
		return nil, err
	}

	results := []*ClusterResult{}
	for _, bins := range records {
		if r := resultFromBins(bins); r.JobID == jobID {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Region != results[j].Region {
			return results[i].Region < results[j].Region
		}
		return results[i].Seq < results[j].Seq
	})
	return results, nil
}

func (s *kvStore) Ping() error { return s.kv.ping() }

func (s *kvStore) Close() { s.kv.close() }

// --- bin mapping ---
// Bin names stay within Aerospike's 15-character limit.

func (s *kvStore) putJob(job *Job) error {
	return s.kv.put(s.jobSet, job.ID, map[string]interface{}{
		"job_id":       job.ID,
		"customer":     job.Customer,
		"created_at":   job.CreatedAt.Format(time.RFC3339Nano),
		"region_count": job.RegionCount,
		"file_count":   job.FileCount,
		"status":       string(job.Status),
	})
}

func jobFromBins(bins map[string]interface{}) *Job {
	job := &Job{
		ID:          binString(bins, "job_id"),
		Customer:    binString(bins, "customer"),
		RegionCount: binInt(bins, "region_count"),
		FileCount:   binInt(bins, "file_count"),
		Status:      JobStatus(binString(bins, "status")),
	}
	if t, err := time.Parse(time.RFC3339Nano, binString(bins, "created_at")); err == nil {
		job.CreatedAt = t
	}
	return job
}

func (s *kvStore) putResult(r *ClusterResult) error {
	payload := "{}"
	if r.Payload != nil {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal result payload")
		}
		payload = string(raw)
	}

	return s.kv.put(s.resultSet, r.Key, map[string]interface{}{
		"result_key":   r.Key,
		"job_id":       r.JobID,
		"region":       r.Region,
		"cluster_name": r.ClusterName,
		"filename":     r.Filename,
		"status":       string(r.Status),
		"error_msg":    r.Error,
		"seq":          r.Seq,
		"created_at":   r.CreatedAt.Format(time.RFC3339Nano),
		"payload":      payload,
	})
}

func resultFromBins(bins map[string]interface{}) *ClusterResult {
	r := &ClusterResult{
		Key:         binString(bins, "result_key"),
		JobID:       binString(bins, "job_id"),
		Region:      binString(bins, "region"),
		ClusterName: binString(bins, "cluster_name"),
		Filename:    binString(bins, "filename"),
		Status:      ResultStatus(binString(bins, "status")),
		Error:       binString(bins, "error_msg"),
		Seq:         binInt(bins, "seq"),
	}
	if t, err := time.Parse(time.RFC3339Nano, binString(bins, "created_at")); err == nil {
		r.CreatedAt = t
	}
	if raw := binString(bins, "payload"); raw != "" && raw != "{}" {
		var rep report.NormalizedReport
		if err := json.Unmarshal([]byte(raw), &rep); err == nil {
			r.Payload = &rep
		} else {
			klog.V(1).Infof("result %s has unreadable payload: %v", r.Key, err)
		}
	}
	return r
}

func binString(bins map[string]interface{}, name string) string {
	if v, ok := bins[name].(string); ok {
		return v
	}
	return ""
}

func binInt(bins map[string]interface{}, name string) int {
	switch v := bins[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
