// Package report defines the normalized schema every structured extraction
// produces, whichever path (oracle or deterministic fallback) produced it.
package report

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Origin tags which extraction path produced a report.
type Origin string

const (
	OriginOracle   Origin = "oracle"
	OriginFallback Origin = "fallback"
)

// Value is a scalar that tolerates the oracle returning either a JSON string
// or a JSON number for the same field. It is stored as its string form.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	*v = Value(string(b))
	return nil
}

func (v Value) String() string {
	return string(v)
}

// Int returns the integer form of the value, 0 if it has none.
func (v Value) Int() int {
	s := strings.TrimSpace(string(v))
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// Count is an integer that tolerates being sent as a quoted string.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(bytes.Trim(bytes.TrimSpace(b), `"`))
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		if f, ferr := strconv.ParseFloat(string(b), 64); ferr == nil {
			*c = Count(int(f))
			return nil
		}
		// tolerate prose like "5 nodes"
		fields := strings.Fields(string(b))
		if len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				*c = Count(n)
				return nil
			}
		}
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// DCNode is one row of the cross-datacenter shipping status table. Numeric
// columns that parse cleanly are coerced; everything else stays text.
type DCNode struct {
	Node           string      `json:"node"`
	DC             string      `json:"dc"`
	DCType         string      `json:"dc_type"`
	Namespaces     string      `json:"namespaces"`
	Lag            string      `json:"lag"`
	RecordsShipped interface{} `json:"records_shipped"`
	AvgLatencyMS   interface{} `json:"avg_latency_ms"`
	Status         string      `json:"status"`
}

// DCInfo is the parsed inter-datacenter shipping section.
type DCInfo struct {
	Timestamp string   `json:"timestamp"`
	Nodes     []DCNode `json:"nodes"`
}

// NormalizedReport is the canonical structured form of one cluster's
// diagnostic output.
type NormalizedReport struct {
	ClusterInfo ClusterInfo  `json:"clusterInfo"`
	Nodes       []Node       `json:"nodes"`
	Namespaces  []*Namespace `json:"namespaces"`
	NetworkInfo NetworkInfo  `json:"networkInfo"`
	Health      Health       `json:"health"`
	DCInfo      *DCInfo      `json:"dcInfo,omitempty"`
	LastUpdated string       `json:"lastUpdated,omitempty"`

	// Traceability: every report carries the raw text it came from, when it
	// was parsed, and which path produced it.
	RawContent string `json:"raw_content"`
	ParsedAt   string `json:"parsed_at"`
	Origin     Origin `json:"origin"`

	// Error is non-empty on fallback-produced reports and explains why the
	// oracle path was not used.
	Error string `json:"error,omitempty"`
}

type ClusterInfo struct {
	Name       string  `json:"name"`
	Version    string  `json:"version"`
	Size       Count   `json:"size"`
	Namespaces Count   `json:"namespaces"`
	Memory     Memory  `json:"memory"`
	License    License `json:"license"`
}

type Memory struct {
	Total       Value `json:"total"`
	Used        Value `json:"used"`
	UsedPercent Value `json:"usedPercent"`
}

type License struct {
	Usage        Value `json:"usage"`
	UsagePercent Value `json:"usagePercent"`
	Total        Value `json:"total,omitempty"`
}

type Node struct {
	Node        string `json:"node"`
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Connections Value  `json:"connections"`
}

type Namespace struct {
	Name              string        `json:"name"`
	Objects           Value         `json:"objects"`
	MemoryUsed        Value         `json:"memoryUsed"`
	MemoryUsedPercent Value         `json:"memoryUsedPercent"`
	ReplicationFactor Value         `json:"replicationFactor"`
	UsageInfo         *UsageInfo    `json:"usageInfo,omitempty"`
	ObjectInfo        *ObjectInfo   `json:"objectInfo,omitempty"`
	License           *License      `json:"license,omitempty"`
	ClientWrites      *ClientWrites `json:"clientWrites,omitempty"`
}

type UsageInfo struct {
	Evictions      Value          `json:"evictions"`
	StopWrites     Value          `json:"stopWrites"`
	SystemMemory   Value          `json:"systemMemory"`
	PrimaryIndex   *IndexUsage    `json:"primaryIndex,omitempty"`
	SecondaryIndex *IndexUsage    `json:"secondaryIndex,omitempty"`
	StorageEngine  *StorageEngine `json:"storageEngine,omitempty"`
}

type IndexUsage struct {
	Type string `json:"type"`
	Used Value  `json:"used"`
}

type StorageEngine struct {
	Used             Value `json:"used"`
	AvailablePercent Value `json:"availablePercent"`
	EvictPercent     Value `json:"evictPercent"`
}

type ObjectInfo struct {
	TotalRecords      Value           `json:"totalRecords"`
	MasterObjects     Value           `json:"masterObjects"`
	ProleObjects      Value           `json:"proleObjects"`
	NonReplicaObjects Value           `json:"nonReplicaObjects"`
	Expirations       Value           `json:"expirations"`
	Tombstones        *Tombstones     `json:"tombstones,omitempty"`
	PendingMigrates   *PendingMigrate `json:"pendingMigrates,omitempty"`
}

type Tombstones struct {
	Master     Value `json:"master"`
	Prole      Value `json:"prole"`
	NonReplica Value `json:"nonReplica"`
}

type PendingMigrate struct {
	Tx Value `json:"tx"`
	Rx Value `json:"rx"`
}

// ClientWrites carries per-node write counters as extracted, plus the
// cluster-level aggregates and derived fields the metrics engine fills in.
type ClientWrites struct {
	PerNode    []Value  `json:"clientWriteSuccessPerNode"`
	XDRPerNode []Value  `json:"xdrClientWriteSuccessPerNode"`
	NodeNames  []string `json:"nodeNames"`

	TotalWrites         int64  `json:"clientWriteSuccess,omitempty"`
	TotalXDRWrites      int64  `json:"xdrClientWriteSuccess,omitempty"`
	UniqueWritesPercent string `json:"uniqueWritesPercent,omitempty"`
	UniqueData          string `json:"uniqueData,omitempty"`
}

type NetworkInfo struct {
	Nodes []NetworkNode `json:"nodes"`
}

type NetworkNode struct {
	Node              string       `json:"node"`
	NodeID            string       `json:"nodeId"`
	IP                string       `json:"ip"`
	Build             string       `json:"build"`
	Migrations        Value        `json:"migrations"`
	Cluster           *ClusterView `json:"cluster,omitempty"`
	ClientConnections Value        `json:"clientConnections"`
	Uptime            string       `json:"uptime"`
}

type ClusterView struct {
	Size      Count  `json:"size"`
	Key       string `json:"key"`
	Integrity Value  `json:"integrity"`
	Principal string `json:"principal"`
}

type Health struct {
	Overall string   `json:"overall"`
	Passed  Count    `json:"passed"`
	Failed  Count    `json:"failed"`
	Skipped Count    `json:"skipped"`
	Issues  []string `json:"issues"`
}
