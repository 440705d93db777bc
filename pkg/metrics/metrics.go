// Package metrics reconciles per-node counters into cluster-level aggregates
// and computes the ratio-derived fields shown per namespace.
package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/report"
	"github.com/clusterops/aerohealth/pkg/units"
)

// NotAvailable is the sentinel for derived fields that could not be computed.
const NotAvailable = "N/A"

// Compute fills in derived metrics on every namespace of the report. A
// namespace with partial data gets sentinel values; one bad namespace never
// blocks the rest of the cluster.
func Compute(rep *report.NormalizedReport) {
	if rep == nil {
		return
	}
	for _, ns := range rep.Namespaces {
		ComputeNamespace(ns)
	}
}

// ComputeNamespace aggregates the per-node write arrays and derives the
// unique-write percentage and unique data volume. It mutates only the
// namespace it is given.
func ComputeNamespace(ns *report.Namespace) {
	if ns == nil || ns.ClientWrites == nil || ns.License == nil {
		return
	}

	cw := ns.ClientWrites

	total, err := sumCounters(cw.PerNode)
	if err != nil {
		markUnavailable(ns, err)
		return
	}
	xdr, err := sumCounters(cw.XDRPerNode)
	if err != nil {
		markUnavailable(ns, err)
		return
	}

	// Unique writes are client writes that did not arrive via XDR. Replicated
	// writes can never exceed local writes on a healthy cluster; the clamp
	// guards against transient counter skew.
	var uniquePct float64
	if total > 0 {
		uniquePct = (total - xdr) * 100 / total
		if uniquePct < 0 {
			uniquePct = 0
		}
		if uniquePct > 100 {
			uniquePct = 100
		}
	}

	usage, ok := units.Magnitude(units.ToGB(ns.License.Usage.String()))
	if !ok {
		markUnavailable(ns, fmt.Errorf("license usage %q is not numeric", ns.License.Usage))
		return
	}

	cw.TotalWrites = int64(total)
	cw.TotalXDRWrites = int64(xdr)
	cw.UniqueWritesPercent = fmt.Sprintf("%.2f%%", uniquePct)
	cw.UniqueData = fmt.Sprintf("%.2f", usage*uniquePct/100)

	klog.V(2).Infof("namespace %s: clientWriteSuccess=%d xdrClientWriteSuccess=%d uniqueWrites=%s uniqueData=%s",
		ns.Name, cw.TotalWrites, cw.TotalXDRWrites, cw.UniqueWritesPercent, cw.UniqueData)
}

func markUnavailable(ns *report.Namespace, err error) {
	klog.V(1).Infof("derived metrics unavailable for namespace %s: %v", ns.Name, err)
	ns.ClientWrites.UniqueWritesPercent = NotAvailable
	ns.ClientWrites.UniqueData = NotAvailable
}

// sumCounters adds up the numeric-coercible entries of a per-node counter
// array. Entries carry thousands separators and occasional unit noise; digits
// and a decimal point are kept, everything else is stripped before parsing.
func sumCounters(values []report.Value) (float64, error) {
	var total float64
	for _, v := range values {
		s := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, strings.ReplaceAll(v.String(), ",", ""))

		if s == "" {
			continue
		}

		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("counter %q is not numeric", v)
		}
		total += n
	}
	return total, nil
}
