package extract

import (
	"regexp"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/report"
)

var timestampRe = regexp.MustCompile(`\(([^)]+)\)`)

// ParseDCInfo parses the pipe-delimited "info dc" table. The header boundary
// is detected by its column labels; separator and label-continuation rows are
// skipped; a row is accepted as a node record only when its node column holds
// an address-like token.
func ParseDCInfo(text string) *report.DCInfo {
	info := &report.DCInfo{Nodes: []report.DCNode{}}

	inHeader := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, "DC Information") && strings.Contains(line, "(") {
			if m := timestampRe.FindStringSubmatch(line); m != nil {
				info.Timestamp = m[1]
			}
			continue
		}

		if strings.Contains(line, "Node|") && strings.Contains(line, "DC|") && strings.Contains(line, "DC Type|") {
			inHeader = true
			continue
		}
		if !inHeader {
			continue
		}

		// separator rows
		if strings.HasPrefix(line, "~") || strings.HasPrefix(line, "-") {
			continue
		}

		parts := strings.Split(line, "|")

		// header separator rows are all-blank cells
		if len(parts) >= 3 && allBlank(parts) {
			continue
		}

		// multi-line column labels continue the header
		if strings.Contains(line, "Shipped") || strings.Contains(line, "Latency") || strings.Contains(line, "(ms)") {
			continue
		}

		if len(parts) < 8 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		if !looksLikeAddress(parts[0]) {
			klog.V(2).Infof("skipping dc row without node address: %q", parts[0])
			continue
		}

		info.Nodes = append(info.Nodes, report.DCNode{
			Node:           parts[0],
			DC:             parts[1],
			DCType:         parts[2],
			Namespaces:     parts[3],
			Lag:            parts[4],
			RecordsShipped: coerceNumber(parts[5]),
			AvgLatencyMS:   coerceNumber(parts[6]),
			Status:         parts[7],
		})
	}

	return info
}

func allBlank(parts []string) bool {
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// looksLikeAddress accepts dotted tokens such as "10.1.2.3:3000" or
// "node4.example.com".
func looksLikeAddress(s string) bool {
	return s != "" && strings.Contains(s, ".")
}

func coerceNumber(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
