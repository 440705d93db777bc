package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/extract"
	"github.com/clusterops/aerohealth/pkg/store"
)

// BatchFile is one staged upload waiting for background processing. The file
// was already claimed against the store and saved under the processor's
// scratch directory.
type BatchFile struct {
	ResultKey string
	Path      string
	Processor *Processor
}

// Batch processes files concurrently under a worker limit, writing each
// outcome to the store. The store's per-entry status is the only progress
// signal a client should rely on: there is no cancellation, and an in-flight
// write after a job delete is an accepted last-write-wins race.
type Batch struct {
	Store   store.Store
	Workers int
}

// Run drains the batch. One file's failure is recorded on its ClusterResult
// and never stops sibling files; Run itself only reports store-level
// problems.
func (b *Batch) Run(ctx context.Context, jobID string, files []BatchFile) {
	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			defer func() {
				if err := f.Processor.Close(); err != nil {
					klog.Errorf("scratch cleanup for %s: %v", f.ResultKey, err)
				}
			}()

			rep, err := f.Processor.Process(gctx, f.Path)
			if err != nil {
				klog.Errorf("processing %s failed: %v", f.ResultKey, err)
				if serr := b.Store.FailResult(f.ResultKey, err.Error()); serr != nil {
					klog.Errorf("recording failure for %s: %v", f.ResultKey, serr)
				}
				return nil
			}

			clusterName := rep.ClusterInfo.Name
			if serr := b.Store.CompleteResult(f.ResultKey, clusterName, rep); serr != nil {
				klog.Errorf("recording completion for %s: %v", f.ResultKey, serr)
			}
			return nil
		})
	}

	_ = g.Wait()

	if err := b.Store.RefreshJobStatus(jobID); err != nil {
		klog.Errorf("refreshing job %s status: %v", jobID, err)
	}
}

// NewProcessorFor builds the per-file processor wired with a fresh runner
// and extractor, isolating concurrent pipelines from each other.
func NewProcessorFor(scratchRoot string, runner *asadm.Runner, gen extract.Generator) (*Processor, error) {
	return NewProcessor(scratchRoot, runner, extract.NewExtractor(gen))
}
