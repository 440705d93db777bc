package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterops/aerohealth/pkg/report"
)

func namespaceWith(perNode, xdrPerNode []report.Value, usage string) *report.Namespace {
	return &report.Namespace{
		Name:    "test",
		License: &report.License{Usage: report.Value(usage)},
		ClientWrites: &report.ClientWrites{
			PerNode:    perNode,
			XDRPerNode: xdrPerNode,
		},
	}
}

func TestComputeNamespace(t *testing.T) {
	tests := []struct {
		name        string
		ns          *report.Namespace
		wantTotal   int64
		wantXDR     int64
		wantPercent string
		wantData    string
	}{
		{
			name: "aggregates across nodes",
			ns: namespaceWith(
				[]report.Value{"23095", "32,213", "215400", "69448", "249390"},
				[]report.Value{"0", "0", "0", "0", "0"},
				"10 GB",
			),
			wantTotal:   589546,
			wantXDR:     0,
			wantPercent: "100.00%",
			wantData:    "10.00",
		},
		{
			name: "partial xdr traffic",
			ns: namespaceWith(
				[]report.Value{"600", "400"},
				[]report.Value{"150", "100"},
				"8 GB",
			),
			wantTotal:   1000,
			wantXDR:     250,
			wantPercent: "75.00%",
			wantData:    "6.00",
		},
		{
			name: "zero writes defined as zero percent",
			ns: namespaceWith(
				[]report.Value{"0", "0"},
				[]report.Value{"0"},
				"4 GB",
			),
			wantTotal:   0,
			wantXDR:     0,
			wantPercent: "0.00%",
			wantData:    "0.00",
		},
		{
			name: "replicated exceeding total is clamped",
			ns: namespaceWith(
				[]report.Value{"100"},
				[]report.Value{"250"},
				"4 GB",
			),
			wantTotal:   100,
			wantXDR:     250,
			wantPercent: "0.00%",
			wantData:    "0.00",
		},
		{
			name: "license usage in megabytes is normalized first",
			ns: namespaceWith(
				[]report.Value{"100"},
				[]report.Value{"0"},
				"512 MB",
			),
			wantTotal:   100,
			wantXDR:     0,
			wantPercent: "100.00%",
			wantData:    "0.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ComputeNamespace(tt.ns)
			cw := tt.ns.ClientWrites
			assert.Equal(t, tt.wantTotal, cw.TotalWrites)
			assert.Equal(t, tt.wantXDR, cw.TotalXDRWrites)
			assert.Equal(t, tt.wantPercent, cw.UniqueWritesPercent)
			assert.Equal(t, tt.wantData, cw.UniqueData)
		})
	}
}

func TestComputeNamespaceUnavailable(t *testing.T) {
	ns := namespaceWith([]report.Value{"100"}, []report.Value{"50"}, "unlimited")
	ComputeNamespace(ns)
	assert.Equal(t, NotAvailable, ns.ClientWrites.UniqueWritesPercent)
	assert.Equal(t, NotAvailable, ns.ClientWrites.UniqueData)

	// malformed counter residue
	ns = namespaceWith([]report.Value{"1.2.3"}, []report.Value{}, "4 GB")
	ComputeNamespace(ns)
	assert.Equal(t, NotAvailable, ns.ClientWrites.UniqueWritesPercent)
}

func TestComputeNamespaceMissingSections(t *testing.T) {
	// no clientWrites or no license: nothing to do, nothing to panic on
	ComputeNamespace(&report.Namespace{Name: "bare"})
	ComputeNamespace(nil)

	ns := &report.Namespace{
		Name:         "nolicense",
		ClientWrites: &report.ClientWrites{PerNode: []report.Value{"5"}},
	}
	ComputeNamespace(ns)
	assert.Empty(t, ns.ClientWrites.UniqueWritesPercent)
}

func TestComputeWholeReport(t *testing.T) {
	rep := &report.NormalizedReport{
		Namespaces: []*report.Namespace{
			namespaceWith([]report.Value{"10"}, []report.Value{"0"}, "1 GB"),
			namespaceWith([]report.Value{"bad..value"}, []report.Value{}, "1 GB"),
		},
	}
	Compute(rep)

	require.Len(t, rep.Namespaces, 2)
	assert.Equal(t, "100.00%", rep.Namespaces[0].ClientWrites.UniqueWritesPercent)
	assert.Equal(t, NotAvailable, rep.Namespaces[1].ClientWrites.UniqueWritesPercent)
}
