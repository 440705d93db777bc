package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshal(t *testing.T) {
	var doc struct {
		A Value `json:"a"`
		B Value `json:"b"`
		C Value `json:"c"`
	}

	err := json.Unmarshal([]byte(`{"a": "512 MB", "b": 42, "c": null}`), &doc)
	require.NoError(t, err)

	assert.Equal(t, "512 MB", doc.A.String())
	assert.Equal(t, "42", doc.B.String())
	assert.Equal(t, 42, doc.B.Int())
	assert.Equal(t, "", doc.C.String())
}

func TestCountUnmarshal(t *testing.T) {
	tests := []struct {
		raw  string
		want Count
	}{
		{`5`, 5},
		{`"5"`, 5},
		{`"5 nodes"`, 5},
		{`2.0`, 2},
		{`null`, 0},
		{`"unknown"`, 0},
	}

	for _, tt := range tests {
		var c Count
		err := json.Unmarshal([]byte(tt.raw), &c)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, c, tt.raw)
	}
}

// The oracle is prompted for camelCase field names; make sure the schema
// round-trips them.
func TestNormalizedReportFieldNames(t *testing.T) {
	doc := `{
		"clusterInfo": {
			"name": "prod-1",
			"version": "7.0.0.3",
			"size": "5",
			"memory": {"total": "128 GB", "usedPercent": "61.2"}
		},
		"namespaces": [{
			"name": "bar",
			"clientWrites": {
				"clientWriteSuccessPerNode": [23095, "32,213"],
				"xdrClientWriteSuccessPerNode": [100, 200],
				"nodeNames": ["10.0.0.1:3000", "10.0.0.2:3000"]
			}
		}],
		"health": {"passed": 38, "failed": "2", "issues": ["stop-writes on bar"]}
	}`

	var rep NormalizedReport
	require.NoError(t, json.Unmarshal([]byte(doc), &rep))

	assert.Equal(t, "prod-1", rep.ClusterInfo.Name)
	assert.Equal(t, Count(5), rep.ClusterInfo.Size)
	assert.Equal(t, "128 GB", rep.ClusterInfo.Memory.Total.String())
	require.Len(t, rep.Namespaces, 1)
	require.NotNil(t, rep.Namespaces[0].ClientWrites)
	assert.Equal(t, "32,213", rep.Namespaces[0].ClientWrites.PerNode[1].String())
	assert.Equal(t, Count(2), rep.Health.Failed)
}
