// Package pipeline runs one uploaded file through the full diagnostic flow:
// save, resolve archive, locate the collectinfo root, run asadm, extract
// structure, persist. Each Processor owns an exclusive scratch directory so
// concurrent pipelines never share mutable state.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/archive"
	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/constants"
	"github.com/clusterops/aerohealth/pkg/extract"
	"github.com/clusterops/aerohealth/pkg/locate"
	"github.com/clusterops/aerohealth/pkg/report"
)

// Processor is a single-use, single-file pipeline instance. Never shared
// between concurrent uploads; Close must run on every exit path.
type Processor struct {
	scratch   string
	runner    *asadm.Runner
	extractor *extract.Extractor
	commands  []string
}

// NewProcessor creates a processor with a fresh exclusive scratch directory
// under scratchRoot.
func NewProcessor(scratchRoot string, runner *asadm.Runner, extractor *extract.Extractor) (*Processor, error) {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	scratch, err := os.MkdirTemp(scratchRoot, constants.ScratchPrefix+"-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}
	klog.V(2).Infof("created scratch directory %s", scratch)

	return &Processor{
		scratch:   scratch,
		runner:    runner,
		extractor: extractor,
		commands:  asadm.DefaultCommands,
	}, nil
}

// Scratch exposes the scratch path for debug listings.
func (p *Processor) Scratch() string {
	return p.scratch
}

// Close removes the scratch directory and everything staged in it.
func (p *Processor) Close() error {
	if p.scratch == "" {
		return nil
	}
	if err := os.RemoveAll(p.scratch); err != nil {
		return errors.Wrap(err, "failed to clean up scratch directory")
	}
	klog.V(2).Infof("cleaned up scratch directory %s", p.scratch)
	return nil
}

// SaveUpload stages an uploaded file into the scratch directory.
func (p *Processor) SaveUpload(filename string, r io.Reader) (string, error) {
	dest := filepath.Join(p.scratch, filepath.Base(filename))
	f, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload file")
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return "", errors.Wrap(err, "failed to save upload")
	}
	klog.V(1).Infof("saved upload %s (%d bytes)", filepath.Base(dest), n)
	return dest, nil
}

// Process runs the staged file through the sequential stages and returns a
// structured report. Within one file the stages are strictly ordered; across
// files nothing is ordered.
//
// An input that no archive decoder matches is treated as a raw collectinfo
// file and handed to asadm directly — asadm consumes both forms.
func (p *Processor) Process(ctx context.Context, savedPath string) (*report.NormalizedReport, error) {
	target := savedPath
	extractedDir := ""

	dir, err := archive.Resolve(savedPath, p.scratch)
	switch {
	case err == nil:
		extractedDir = dir
		root := locate.CollectinfoRoot(dir)
		if f, ok := locate.CollectinfoFile(root); ok {
			target = f
		} else {
			target = root
		}
	case errors.Is(err, archive.ErrNoDecoder):
		klog.V(1).Infof("%s is not an archive, running asadm against it directly", filepath.Base(savedPath))
	default:
		return nil, errors.Wrap(err, "failed to resolve archive")
	}

	results := p.runner.Run(ctx, target, p.commands)
	combined := asadm.Combine(p.commands, results)

	// When every command failed (asadm missing or bundle unreadable) but the
	// bundle carries a pre-generated report, extract from that text instead.
	if allFailed(results) && extractedDir != "" {
		if reportFile, lerr := locate.Locate(extractedDir); lerr == nil {
			raw, rerr := os.ReadFile(reportFile)
			if rerr == nil {
				klog.V(1).Infof("asadm produced nothing, extracting from bundled report %s", filepath.Base(reportFile))
				combined = string(raw)
			}
		}
	}

	if combined == "" {
		return nil, errors.New("diagnostic run produced no output")
	}

	return p.extractor.Extract(ctx, combined), nil
}

func allFailed(results map[string]asadm.CommandResult) bool {
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}
