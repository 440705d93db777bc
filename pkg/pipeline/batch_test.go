package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterops/aerohealth/pkg/store"
)

func stageFile(t *testing.T, p *Processor, name string, bundle string) string {
	t.Helper()
	f, err := os.Open(bundle)
	require.NoError(t, err)
	defer f.Close()
	saved, err := p.SaveUpload(name, f)
	require.NoError(t, err)
	return saved
}

// Two files process concurrently; both outcomes land on the store and the
// job rolls up to completed.
func TestBatchRun(t *testing.T) {
	s := store.NewInMemory()
	job, err := s.CreateJob("Acme", []store.RegionSpec{{Name: "east", FileCount: 2}})
	require.NoError(t, err)

	runner := fakeAsadm(t, false)
	bundle := tgzBundle(t, t.TempDir())
	scratchRoot := t.TempDir()

	files := []BatchFile{}
	for _, name := range []string{"a.tgz", "b.tgz"} {
		p, err := NewProcessorFor(scratchRoot, runner, nil)
		require.NoError(t, err)
		saved := stageFile(t, p, name, bundle)

		claimed, err := s.ClaimPlaceholder(job.ID, "east", name)
		require.NoError(t, err)

		files = append(files, BatchFile{ResultKey: claimed.Key, Path: saved, Processor: p})
	}

	b := &Batch{Store: s, Workers: 2}
	b.Run(context.Background(), job.ID, files)

	results, err := s.ListResultsByJob(job.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, store.ResultCompleted, r.Status, r.Key)
		require.NotNil(t, r.Payload)
		assert.Equal(t, "prod-1", r.ClusterName)
	}

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, got.Status)

	// every scratch directory was cleaned up
	entries, err := os.ReadDir(scratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// One file hitting an I/O failure fails alone; its sibling still completes.
func TestBatchIsolatesFailures(t *testing.T) {
	s := store.NewInMemory()
	job, err := s.CreateJob("Acme", []store.RegionSpec{{Name: "east", FileCount: 2}})
	require.NoError(t, err)

	scratchRoot := t.TempDir()

	pBad, err := NewProcessorFor(scratchRoot, fakeAsadm(t, true), nil)
	require.NoError(t, err)
	badPath := filepath.Join(pBad.Scratch(), "bad.tgz")
	require.NoError(t, os.WriteFile(badPath, []byte{0x00, 0x01}, 0644))
	// a plain file squatting on the extraction path forces Resolve to error
	require.NoError(t, os.WriteFile(filepath.Join(pBad.Scratch(), "extracted"), nil, 0644))
	claimedBad, err := s.ClaimPlaceholder(job.ID, "east", "bad.tgz")
	require.NoError(t, err)

	pGood, err := NewProcessorFor(scratchRoot, fakeAsadm(t, false), nil)
	require.NoError(t, err)
	goodPath := stageFile(t, pGood, "good.tgz", tgzBundle(t, t.TempDir()))
	claimedGood, err := s.ClaimPlaceholder(job.ID, "east", "good.tgz")
	require.NoError(t, err)

	b := &Batch{Store: s, Workers: 2}
	b.Run(context.Background(), job.ID, []BatchFile{
		{ResultKey: claimedBad.Key, Path: badPath, Processor: pBad},
		{ResultKey: claimedGood.Key, Path: goodPath, Processor: pGood},
	})

	bad, err := s.GetResult(claimedBad.Key)
	require.NoError(t, err)
	assert.Equal(t, store.ResultFailed, bad.Status)
	assert.NotEmpty(t, bad.Error)

	good, err := s.GetResult(claimedGood.Key)
	require.NoError(t, err)
	assert.Equal(t, store.ResultCompleted, good.Status)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, got.Status)
}
