package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fakeAsadm(t *testing.T) *asadm.Runner {
	t.Helper()
	script := filepath.Join(t.TempDir(), "asadm")
	body := `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "Aerospike Admin 2.25"
  exit 0
fi
echo "Cluster Name|prod-1"
echo "Cluster Size|5"
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))
	return asadm.NewRunner(script, 5*time.Second)
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := store.NewInMemory()
	srv := New(Options{
		Store:       s,
		Runner:      fakeAsadm(t),
		ScratchRoot: t.TempDir(),
		LogsDir:     t.TempDir(),
		Workers:     2,
	})
	return srv, s
}

func doJSON(t *testing.T, srv *Server, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func multipartUpload(t *testing.T, field string, extra map[string]string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, name := range filenames {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("collectinfo placeholder content\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := doJSON(t, srv, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["oracle_configured"])
	assert.Equal(t, true, body["store_connected"])
	assert.Contains(t, body["asadm_version"], "Aerospike Admin")
}

func TestCreateRequiresCustomerAndRegions(t *testing.T) {
	srv, _ := newTestServer(t)

	form := url.Values{"regions": {"east:2"}}
	req := httptest.NewRequest("POST", "/health-checks/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, _ := doJSON(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, code)

	form = url.Values{"customer_name": {"Acme"}, "regions": {"east"}}
	req = httptest.NewRequest("POST", "/health-checks/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, _ = doJSON(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateListAndDetail(t *testing.T) {
	srv, _ := newTestServer(t)

	form := url.Values{"customer_name": {"Acme Corp"}, "regions": {"east:2,west:1"}}
	req := httptest.NewRequest("POST", "/health-checks/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, body := doJSON(t, srv, req)
	require.Equal(t, http.StatusCreated, code)

	job := body["health_check"].(map[string]interface{})
	jobID := job["id"].(string)
	require.NotEmpty(t, jobID)

	code, body = doJSON(t, srv, httptest.NewRequest("GET", "/health-checks", nil))
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["health_checks"], 1)

	code, body = doJSON(t, srv, httptest.NewRequest("GET", "/health-checks/"+jobID, nil))
	require.Equal(t, http.StatusOK, code)
	regions := body["regions"].(map[string]interface{})
	assert.Len(t, regions["east"], 2)
	assert.Len(t, regions["west"], 1)

	// every placeholder starts out waiting
	for _, entries := range regions {
		for _, e := range entries.([]interface{}) {
			assert.Equal(t, "waiting", e.(map[string]interface{})["status"])
		}
	}
}

func TestBatchUploadCompletes(t *testing.T) {
	srv, s := newTestServer(t)

	job, err := s.CreateJob("Acme", []store.RegionSpec{{Name: "east", FileCount: 2}})
	require.NoError(t, err)

	buf, ctype := multipartUpload(t, "files", map[string]string{"region": "east"}, "c1.txt", "c2.txt")
	req := httptest.NewRequest("POST", "/health-checks/"+job.ID+"/upload", buf)
	req.Header.Set("Content-Type", ctype)
	code, body := doJSON(t, srv, req)
	require.Equal(t, http.StatusAccepted, code)
	require.Len(t, body["result_keys"], 2)

	require.Eventually(t, func() bool {
		results, err := s.ListResultsByJob(job.ID)
		if err != nil {
			return false
		}
		for _, r := range results {
			if r.Status != store.ResultCompleted {
				return false
			}
		}
		got, err := s.GetJob(job.ID)
		return err == nil && got.Status == store.JobCompleted
	}, 10*time.Second, 50*time.Millisecond)

	results, err := s.ListResultsByJob(job.ID)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "prod-1", r.ClusterName)
	}
}

// flakyClaimStore fails every claim after the first, simulating the store
// dropping out partway through staging a batch.
type flakyClaimStore struct {
	store.Store
	claims int
}

func (f *flakyClaimStore) ClaimPlaceholder(jobID, region, filename string) (*store.ClusterResult, error) {
	f.claims++
	if f.claims > 1 {
		return nil, errors.New("store connection lost")
	}
	return f.Store.ClaimPlaceholder(jobID, region, filename)
}

func TestBatchUploadFailsClaimedOnAbort(t *testing.T) {
	inner := store.NewInMemory()
	flaky := &flakyClaimStore{Store: inner}
	srv := New(Options{
		Store:       flaky,
		Runner:      fakeAsadm(t),
		ScratchRoot: t.TempDir(),
		LogsDir:     t.TempDir(),
	})

	job, err := inner.CreateJob("Acme", []store.RegionSpec{{Name: "east", FileCount: 2}})
	require.NoError(t, err)

	buf, ctype := multipartUpload(t, "files", map[string]string{"region": "east"}, "c1.txt", "c2.txt")
	req := httptest.NewRequest("POST", "/health-checks/"+job.ID+"/upload", buf)
	req.Header.Set("Content-Type", ctype)
	code, _ := doJSON(t, srv, req)
	require.Equal(t, http.StatusInternalServerError, code)

	// the first file's claimed placeholder must not be stranded in processing
	results, err := inner.ListResultsByJob(job.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var failed, waiting int
	for _, r := range results {
		switch r.Status {
		case store.ResultFailed:
			failed++
			assert.Contains(t, r.Error, "batch aborted")
		case store.ResultWaiting:
			waiting++
		default:
			t.Fatalf("unexpected status %s for %s", r.Status, r.Key)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, waiting)
}

func TestUploadToUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, ctype := multipartUpload(t, "files", map[string]string{"region": "east"}, "c1.txt")
	req := httptest.NewRequest("POST", "/health-checks/hc_0_nope/upload", buf)
	req.Header.Set("Content-Type", ctype)
	code, _ := doJSON(t, srv, req)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSingleUpload(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, ctype := multipartUpload(t, "file", nil, "collectinfo.txt")
	req := httptest.NewRequest("POST", "/upload", buf)
	req.Header.Set("Content-Type", ctype)
	code, body := doJSON(t, srv, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "collectinfo.txt", body["filename"])

	data := body["data"].(map[string]interface{})
	cluster := data["clusterInfo"].(map[string]interface{})
	assert.Equal(t, "prod-1", cluster["name"])
}

func TestClusterDetailAndDelete(t *testing.T) {
	srv, s := newTestServer(t)

	job, err := s.CreateJob("Acme", []store.RegionSpec{{Name: "east", FileCount: 1}})
	require.NoError(t, err)
	results, err := s.ListResultsByJob(job.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	key := results[0].Key

	code, body := doJSON(t, srv, httptest.NewRequest("GET", "/health-checks/"+job.ID+"/cluster/"+key, nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	// key belongs to a different job id
	code, _ = doJSON(t, srv, httptest.NewRequest("GET", "/health-checks/hc_0_other/cluster/"+key, nil))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, srv, httptest.NewRequest("DELETE", "/health-checks/"+job.ID, nil))
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, srv, httptest.NewRequest("GET", "/health-checks/"+job.ID, nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClearLogs(t *testing.T) {
	logs := t.TempDir()
	s := store.NewInMemory()
	srv := New(Options{Store: s, Runner: fakeAsadm(t), ScratchRoot: t.TempDir(), LogsDir: logs})

	require.NoError(t, os.WriteFile(filepath.Join(logs, "backend.log"), []byte("old"), 0644))

	code, body := doJSON(t, srv, httptest.NewRequest("DELETE", "/clear-logs", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	entries, err := os.ReadDir(logs)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseRegions(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []store.RegionSpec
		wantErr bool
	}{
		{
			name: "single pair",
			in:   []string{"east:3"},
			want: []store.RegionSpec{{Name: "east", FileCount: 3}},
		},
		{
			name: "comma separated",
			in:   []string{"east:2, west:1"},
			want: []store.RegionSpec{{Name: "east", FileCount: 2}, {Name: "west", FileCount: 1}},
		},
		{
			name: "repeated fields",
			in:   []string{"east:2", "west:1"},
			want: []store.RegionSpec{{Name: "east", FileCount: 2}, {Name: "west", FileCount: 1}},
		},
		{
			name:    "missing count",
			in:      []string{"east"},
			wantErr: true,
		},
		{
			name:    "zero count",
			in:      []string{"east:0"},
			wantErr: true,
		},
		{
			name:    "empty",
			in:      nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRegions(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
