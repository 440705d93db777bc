package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/constants"
	"github.com/clusterops/aerohealth/pkg/logger"
)

func ReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate critical and detailed health reports from a collectinfo bundle",
		Long:  `Run the critical and detailed asadm command sets against a collectinfo file or directory and write timestamped text reports.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			v := viper.GetViper()
			v.BindPFlags(cmd.Flags())
			logger.SetupLogger(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(viper.GetViper())
		},
	}

	cmd.Flags().StringP("collectinfo", "c", "", "path to the collectinfo file or directory")
	cmd.Flags().StringP("output", "o", ".", "target directory for the reports")
	cmd.Flags().String("asadm-binary", constants.DEFAULT_ASADM_BINARY, "path to the asadm binary")
	cmd.Flags().Bool("web-output", false, "also write parsed health data as JSON")
	cmd.MarkFlagRequired("collectinfo")

	viper.BindPFlags(cmd.Flags())

	return cmd
}

func runReport(v *viper.Viper) error {
	collectinfo := v.GetString("collectinfo")
	output := v.GetString("output")

	if _, err := os.Stat(collectinfo); err != nil {
		return errors.Wrapf(err, "collectinfo path %s", collectinfo)
	}
	if err := os.MkdirAll(output, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	runner := asadm.NewRunner(v.GetString("asadm-binary"), constants.DEFAULT_COMMAND_TIMEOUT)
	timestamp := time.Now().Format("20060102_150405")
	ctx := context.Background()

	criticalPath := filepath.Join(output, fmt.Sprintf("aerospike_critical_report_%s.txt", timestamp))
	criticalOut, err := writeReport(ctx, runner, collectinfo, criticalPath, "AEROSPIKE CRITICAL HEALTH REPORT", asadm.CriticalCommands)
	if err != nil {
		return err
	}
	fmt.Printf("Critical report: %s\n", criticalPath)

	detailedPath := filepath.Join(output, fmt.Sprintf("aerospike_detailed_report_%s.txt", timestamp))
	detailedOut, err := writeReport(ctx, runner, collectinfo, detailedPath, "AEROSPIKE DETAILED HEALTH REPORT", asadm.DetailedCommands)
	if err != nil {
		return err
	}
	fmt.Printf("Detailed report: %s\n", detailedPath)

	if v.GetBool("web-output") {
		jsonPath := filepath.Join(output, fmt.Sprintf("aerospike_health_data_%s.json", timestamp))
		data := parseHealthOutput(criticalOut + "\n" + detailedOut)
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode health data")
		}
		if err := os.WriteFile(jsonPath, raw, 0644); err != nil {
			return errors.Wrap(err, "failed to write health data")
		}
		fmt.Printf("Web data: %s\n", jsonPath)
	}

	return nil
}

func writeReport(ctx context.Context, runner *asadm.Runner, collectinfo, path, title string, commands []string) (string, error) {
	stdout, stderr, err := runner.RunScript(ctx, collectinfo, commands)
	if err != nil && stdout == "" {
		return "", errors.Wrapf(err, "generating %s", filepath.Base(path))
	}

	var sb strings.Builder
	banner := strings.Repeat("=", 80)
	sb.WriteString(banner + "\n")
	sb.WriteString(title + "\n")
	sb.WriteString(banner + "\n")
	fmt.Fprintf(&sb, "Generated on: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Collectinfo path: %s\n", collectinfo)
	sb.WriteString(banner + "\n\n")
	sb.WriteString(stdout)
	if stderr != "" {
		fmt.Fprintf(&sb, "\n\nWARNINGS/ERRORS:\n%s", stderr)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return stdout, nil
}

// healthData is the compact machine-readable digest of a report run.
type healthData struct {
	Timestamp          string            `json:"timestamp"`
	HealthStatus       map[string]string `json:"health_status"`
	ClusterSummary     map[string]int    `json:"cluster_summary"`
	PerformanceMetrics map[string]string `json:"performance_metrics"`
	Issues             []string          `json:"issues"`
	Warnings           []string          `json:"warnings"`
}

var (
	healthRe  = regexp.MustCompile(`(?i)health\s*:\s*(.+)`)
	nodesRe   = regexp.MustCompile(`Number of nodes\s*:\s*(\d+)`)
	metricRes = map[string]*regexp.Regexp{
		"client_proxy":    regexp.MustCompile(`client_proxy\s+(\d+)`),
		"cache_read_pct":  regexp.MustCompile(`cache_read_pct\s+([\d.]+)`),
		"evicted_objects": regexp.MustCompile(`evicted_objects\s+(\d+)`),
		"stop_write":      regexp.MustCompile(`stop_write\s+(\d+)`),
	}
)

func parseHealthOutput(text string) *healthData {
	data := &healthData{
		Timestamp:          time.Now().Format(time.RFC3339),
		HealthStatus:       map[string]string{},
		ClusterSummary:     map[string]int{},
		PerformanceMetrics: map[string]string{},
		Issues:             []string{},
		Warnings:           []string{},
	}

	if m := healthRe.FindStringSubmatch(text); m != nil {
		data.HealthStatus["overall"] = strings.TrimSpace(m[1])
	}
	if m := nodesRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			data.ClusterSummary["node_count"] = n
		}
	}
	for metric, re := range metricRes {
		if m := re.FindStringSubmatch(text); m != nil {
			data.PerformanceMetrics[metric] = m[1]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "ERROR") {
			data.Issues = append(data.Issues, strings.TrimSpace(line))
		} else if strings.Contains(upper, "WARNING") {
			data.Warnings = append(data.Warnings, strings.TrimSpace(line))
		}
	}

	return data
}
