package extract

import (
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/report"
)

// Fallback builds a best-effort partial record by pattern-matching known
// field labels in the raw asadm output. The result always carries a non-empty
// Error explaining why the oracle path was skipped, and the raw text for
// audit.
func Fallback(combined string, reason string) *report.NormalizedReport {
	if reason == "" {
		reason = "deterministic fallback extraction"
	}

	rep := &report.NormalizedReport{
		ClusterInfo: report.ClusterInfo{
			Name:    "Unknown",
			Version: "Unknown",
			Memory: report.Memory{
				Total:       "Unknown",
				Used:        "Unknown",
				UsedPercent: "Unknown",
			},
			License: report.License{
				Usage:        "Unknown",
				UsagePercent: "Unknown",
				Total:        "Unknown",
			},
		},
		Nodes:       []report.Node{},
		Namespaces:  []*report.Namespace{},
		NetworkInfo: report.NetworkInfo{Nodes: []report.NetworkNode{}},
		Health:      report.Health{Overall: "Unknown", Issues: []string{}},
		LastUpdated: time.Now().Format(time.RFC3339),
		RawContent:  combined,
		ParsedAt:    time.Now().Format(time.RFC3339),
		Origin:      report.OriginFallback,
		Error:       reason,
	}

	for _, line := range strings.Split(combined, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "Cluster Name"):
			rep.ClusterInfo.Name = lastField(line)
		case strings.Contains(line, "Server Version"):
			rep.ClusterInfo.Version = lastField(line)
		case strings.Contains(line, "Cluster Size"):
			if n, err := strconv.Atoi(lastField(line)); err == nil {
				rep.ClusterInfo.Size = report.Count(n)
			}
		case strings.Contains(line, "Namespaces Active"):
			if n, err := strconv.Atoi(lastField(line)); err == nil {
				rep.ClusterInfo.Namespaces = report.Count(n)
			}
		case strings.Contains(line, "Total:") && strings.Contains(line, "Passed:") && strings.Contains(line, "Failed:"):
			parseCheckCounts(line, &rep.Health)
		}
	}

	klog.V(1).Infof("fallback extraction produced cluster=%q size=%d", rep.ClusterInfo.Name, rep.ClusterInfo.Size)
	return rep
}

// lastField returns the text after the final pipe delimiter, the layout
// asadm's summary tables use for "Label|value" rows.
func lastField(line string) string {
	parts := strings.Split(line, "|")
	return strings.TrimSpace(parts[len(parts)-1])
}

// parseCheckCounts reads a "Total: N Passed: N Failed: N Skipped: N" health
// summary row.
func parseCheckCounts(line string, h *report.Health) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if i+1 >= len(fields) {
			break
		}
		n, err := strconv.Atoi(strings.TrimRight(fields[i+1], ","))
		if err != nil {
			continue
		}
		switch f {
		case "Passed:":
			h.Passed = report.Count(n)
		case "Failed:":
			h.Failed = report.Count(n)
		case "Skipped:":
			h.Skipped = report.Count(n)
		}
	}
}
