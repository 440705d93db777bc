package server

import (
	"context"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/logger"
	"github.com/clusterops/aerohealth/pkg/pipeline"
	"github.com/clusterops/aerohealth/pkg/store"
)

// uploadSingle processes one ad-hoc file synchronously and returns the
// extracted report. Unlike the batch path there is no result record to
// isolate failures onto, so errors surface directly to the caller.
func (s *Server) uploadSingle(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no file provided"})
		return
	}

	p, err := pipeline.NewProcessorFor(s.scratchRoot, s.runner, s.oracle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	defer func() {
		if err := p.Close(); err != nil {
			klog.Errorf("scratch cleanup: %v", err)
		}
	}()

	saved, err := saveMultipart(p, fh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	rep, err := p.Process(c.Request.Context(), saved)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"filename": fh.Filename,
		"data":     rep,
		"message":  "File processed successfully",
	})
}

func (s *Server) health(c *gin.Context) {
	storeConnected := false
	if s.store != nil {
		storeConnected = s.store.Ping() == nil
	}

	asadmVersion := ""
	if s.runner != nil {
		if v, err := s.runner.Version(c.Request.Context()); err == nil {
			asadmVersion = v
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"oracle_configured": s.oracle != nil && s.oracle.Configured(),
		"store_connected":   storeConnected,
		"asadm_version":     asadmVersion,
	})
}

func (s *Server) listHealthChecks(c *gin.Context) {
	jobs, err := s.store.ListJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "health_checks": jobs})
}

func (s *Server) createHealthCheck(c *gin.Context) {
	customer := strings.TrimSpace(c.PostForm("customer_name"))
	if customer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "customer_name is required"})
		return
	}

	regions, err := parseRegions(c.PostFormArray("regions"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	job, err := s.store.CreateJob(customer, regions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "health_check": job})
}

// parseRegions accepts both repeated form fields and comma-separated lists of
// "name:count" pairs.
func parseRegions(raw []string) ([]store.RegionSpec, error) {
	var specs []store.RegionSpec
	for _, field := range raw {
		for _, pair := range strings.Split(field, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, countStr, found := strings.Cut(pair, ":")
			if !found {
				return nil, errors.Errorf("region %q is not in name:count form", pair)
			}
			count, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil || count < 1 {
				return nil, errors.Errorf("region %q has an invalid file count", pair)
			}
			specs = append(specs, store.RegionSpec{Name: strings.TrimSpace(name), FileCount: count})
		}
	}
	if len(specs) == 0 {
		return nil, errors.New("at least one region is required")
	}
	return specs, nil
}

// uploadToHealthCheck claims a placeholder per file, then processes the batch
// in the background. The response only acknowledges acceptance; progress is
// observed through the job detail endpoint.
func (s *Server) uploadToHealthCheck(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := s.store.GetJob(jobID); err != nil {
		abortStoreError(c, err)
		return
	}

	region := strings.TrimSpace(c.PostForm("region"))
	if region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "region is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no files provided"})
		return
	}

	var files []pipeline.BatchFile
	var keys []string
	// A failure partway through staging must not strand earlier files: their
	// placeholders are already claimed, so mark them failed before bailing.
	abandon := func(reason string) {
		for _, f := range files {
			_ = f.Processor.Close()
			if err := s.store.FailResult(f.ResultKey, reason); err != nil {
				klog.Errorf("failing abandoned result %s: %v", f.ResultKey, err)
			}
		}
	}
	for _, fh := range uploads {
		p, err := pipeline.NewProcessorFor(s.scratchRoot, s.runner, s.oracle)
		if err != nil {
			abandon("batch aborted: " + err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		saved, err := saveMultipart(p, fh)
		if err != nil {
			_ = p.Close()
			abandon("batch aborted: " + err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		claimed, err := s.store.ClaimPlaceholder(jobID, region, fh.Filename)
		if err != nil {
			_ = p.Close()
			abandon("batch aborted: " + err.Error())
			abortStoreError(c, err)
			return
		}

		files = append(files, pipeline.BatchFile{
			ResultKey: claimed.Key,
			Path:      saved,
			Processor: p,
		})
		keys = append(keys, claimed.Key)
	}

	batch := &pipeline.Batch{Store: s.store, Workers: s.workers}
	// Detached from the request context on purpose: processing outlives the
	// upload request and is never cancelled by it.
	go batch.Run(context.Background(), jobID, files)

	c.JSON(http.StatusAccepted, gin.H{
		"success":     true,
		"message":     "Files accepted for processing",
		"region":      region,
		"result_keys": keys,
	})
}

// clusterSummary is the per-cluster view in the grouped job detail. The full
// payload is deliberately left to the single-cluster endpoint.
type clusterSummary struct {
	Key         string             `json:"result_key"`
	ClusterName string             `json:"cluster_name"`
	Filename    string             `json:"filename,omitempty"`
	Status      store.ResultStatus `json:"status"`
	Error       string             `json:"error,omitempty"`
}

func (s *Server) getHealthCheck(c *gin.Context) {
	jobID := c.Param("id")
	job, err := s.store.GetJob(jobID)
	if err != nil {
		abortStoreError(c, err)
		return
	}

	results, err := s.store.ListResultsByJob(jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	grouped := map[string][]clusterSummary{}
	for _, r := range results {
		grouped[r.Region] = append(grouped[r.Region], clusterSummary{
			Key:         r.Key,
			ClusterName: r.ClusterName,
			Filename:    r.Filename,
			Status:      r.Status,
			Error:       r.Error,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"health_check": job,
		"regions":      grouped,
	})
}

func (s *Server) getClusterResult(c *gin.Context) {
	jobID := c.Param("id")
	result, err := s.store.GetResult(c.Param("key"))
	if err != nil {
		abortStoreError(c, err)
		return
	}
	if result.JobID != jobID {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cluster": result})
}

func (s *Server) deleteHealthCheck(c *gin.Context) {
	if err := s.store.DeleteJob(c.Param("id")); err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Health check deleted"})
}

func (s *Server) clearLogs(c *gin.Context) {
	removed, err := logger.ClearLogs(s.logsDir)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Error clearing logs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Log files cleared successfully",
		"removed": removed,
	})
}

// debugFiles lists the scratch area for troubleshooting stuck uploads.
func (s *Server) debugFiles(c *gin.Context) {
	root := s.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	if _, err := os.Stat(root); err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "no scratch directory found"})
		return
	}

	var files []gin.H
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		entry := gin.H{"name": d.Name(), "path": rel}
		if d.IsDir() {
			entry["type"] = "directory"
		} else {
			entry["type"] = "file"
			if info, err := d.Info(); err == nil {
				entry["size"] = info.Size()
			}
		}
		files = append(files, entry)
		return nil
	})

	c.JSON(http.StatusOK, gin.H{"scratch_dir": root, "files": files})
}

func saveMultipart(p *pipeline.Processor, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "failed to open upload")
	}
	defer f.Close()
	return p.SaveUpload(fh.Filename, f)
}

func abortStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "record not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}
