// Package extract converts combined asadm output into the normalized report
// schema. The primary path is a semantic-extraction oracle; a deterministic
// label-scanning fallback guarantees some structured result whenever the
// oracle is unavailable or returns something unparsable. The dual path is
// the core resilience property of the pipeline: a degraded structured result
// is always preferable to none.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/metrics"
	"github.com/clusterops/aerohealth/pkg/oracle"
	"github.com/clusterops/aerohealth/pkg/report"
	"github.com/clusterops/aerohealth/pkg/units"
)

// minOracleResponse guards against the oracle returning an empty or
// truncated blurb instead of a document.
const minOracleResponse = 10

// Generator is the semantic-extraction oracle contract. *oracle.Client
// satisfies it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Extractor owns one file's extraction. Instances are cheap and not shared
// between concurrent pipelines.
type Extractor struct {
	oracle Generator
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{oracle: gen}
}

// Extract never fails: every outcome is a report. Oracle-derived reports are
// tagged OriginOracle; any oracle trouble (unconfigured, transport error,
// too-short response, schema parse failure) degrades to the deterministic
// fallback, tagged OriginFallback with a diagnostic in Error. Both carry the
// raw text verbatim for audit and re-processing.
func (e *Extractor) Extract(ctx context.Context, combined string) *report.NormalizedReport {
	rep := e.extract(ctx, combined)

	// The DC shipping table is structured enough to parse deterministically,
	// so it is attached regardless of which path produced the report.
	if dc := ParseDCInfo(combined); len(dc.Nodes) > 0 {
		rep.DCInfo = dc
	}
	return rep
}

func (e *Extractor) extract(ctx context.Context, combined string) *report.NormalizedReport {
	if e.oracle == nil || !e.oracle.Configured() {
		klog.V(1).Info("extraction oracle not configured, using deterministic fallback")
		return Fallback(combined, oracle.ErrNotConfigured.Error())
	}

	raw, err := e.oracle.Generate(ctx, buildPrompt(combined))
	if err != nil {
		klog.V(1).Infof("oracle call failed, using deterministic fallback: %v", err)
		return Fallback(combined, "oracle error: "+err.Error())
	}

	cleaned := StripCodeFences(raw)
	if len(cleaned) < minOracleResponse {
		klog.V(1).Infof("oracle response too short (%d chars), using deterministic fallback", len(cleaned))
		return Fallback(combined, "oracle returned empty response")
	}

	var rep report.NormalizedReport
	if err := json.Unmarshal([]byte(cleaned), &rep); err != nil {
		klog.V(1).Infof("oracle response failed schema parsing, using deterministic fallback: %v", err)
		return Fallback(combined, "failed to parse oracle response: "+err.Error())
	}

	rep.Origin = report.OriginOracle
	rep.RawContent = combined
	rep.ParsedAt = time.Now().Format(time.RFC3339)

	normalizeSizes(&rep)
	metrics.Compute(&rep)

	return &rep
}

// StripCodeFences removes surrounding markdown code-fence markers the oracle
// sometimes adds despite instruction.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.ReplaceAll(s, "```json", "")
		s = strings.ReplaceAll(s, "```", "")
	} else if strings.HasPrefix(s, "```") {
		s = strings.ReplaceAll(s, "```", "")
	}

	return strings.TrimSpace(s)
}

// normalizeSizes rewrites every size-valued field into the canonical unit.
func normalizeSizes(rep *report.NormalizedReport) {
	ci := &rep.ClusterInfo
	ci.Memory.Total = normGB(ci.Memory.Total)
	ci.Memory.Used = normGB(ci.Memory.Used)
	ci.License.Usage = normGB(ci.License.Usage)
	ci.License.Total = normGB(ci.License.Total)

	for _, ns := range rep.Namespaces {
		if ns == nil {
			continue
		}
		ns.MemoryUsed = normGB(ns.MemoryUsed)
		if ns.License != nil {
			ns.License.Usage = normGB(ns.License.Usage)
		}
		if ns.UsageInfo != nil {
			if ns.UsageInfo.PrimaryIndex != nil {
				ns.UsageInfo.PrimaryIndex.Used = normGB(ns.UsageInfo.PrimaryIndex.Used)
			}
			if ns.UsageInfo.SecondaryIndex != nil {
				ns.UsageInfo.SecondaryIndex.Used = normGB(ns.UsageInfo.SecondaryIndex.Used)
			}
			if ns.UsageInfo.StorageEngine != nil {
				ns.UsageInfo.StorageEngine.Used = normGB(ns.UsageInfo.StorageEngine.Used)
			}
		}
	}
}

func normGB(v report.Value) report.Value {
	if v == "" {
		return v
	}
	return report.Value(units.ToGB(v.String()))
}
