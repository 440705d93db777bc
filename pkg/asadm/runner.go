// Package asadm invokes the Aerospike admin CLI in collectinfo mode and
// shapes its free-text output for downstream extraction.
package asadm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/constants"
)

// CommandResult captures one command's invocation. Failures are data, not
// errors: a command of uneven stability must not blank out the rest of the
// report.
type CommandResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"return_code"`
	Success  bool   `json:"success"`
}

// Runner executes asadm commands against a collectinfo path.
type Runner struct {
	Binary  string
	Timeout time.Duration
}

func NewRunner(binary string, timeout time.Duration) *Runner {
	if binary == "" {
		binary = constants.DEFAULT_ASADM_BINARY
	}
	if timeout <= 0 {
		timeout = constants.DEFAULT_COMMAND_TIMEOUT
	}
	return &Runner{Binary: binary, Timeout: timeout}
}

// Run executes each command independently with a bounded wait and returns a
// result per command. Every command always runs; one failure never aborts
// the batch.
func (r *Runner) Run(ctx context.Context, target string, commands []string) map[string]CommandResult {
	results := make(map[string]CommandResult, len(commands))

	for i, command := range commands {
		klog.V(1).Infof("running asadm command %d/%d: %s", i+1, len(commands), command)
		results[command] = r.runOne(ctx, target, command)
	}

	return results
}

func (r *Runner) runOne(ctx context.Context, target string, command string) CommandResult {
	cmdCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.Binary, "-c", "-f", target, "-e", command)
	klog.V(2).Infof("exec: %s", cmd.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := CommandResult{Command: command}
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	switch {
	case err == nil:
		result.Success = true
	case cmdCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = -1
		result.Stderr = fmt.Sprintf("command timed out after %s", r.Timeout)
		klog.V(1).Infof("asadm command %q timed out", command)
	default:
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
		klog.V(1).Infof("asadm command %q failed with exit code %d", command, result.ExitCode)
	}

	return result
}

// RunScript runs all commands in a single asadm invocation, joined by
// semicolons, and returns the raw stdout/stderr. Used by the offline report
// generator where per-command isolation matters less than a single coherent
// transcript.
func (r *Runner) RunScript(ctx context.Context, target string, commands []string) (string, string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.Timeout*time.Duration(len(commands)))
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.Binary, "-c", "-f", target, "-e", strings.Join(commands, "; "))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), errors.Wrap(err, "asadm script failed")
	}
	return stdout.String(), stderr.String(), nil
}

// Version probes the binary. Used at startup as a warn-only availability
// check.
func (r *Runner) Version(ctx context.Context) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, r.Binary, "--version").CombinedOutput()
	if err != nil {
		return "", errors.Wrap(err, "asadm not available")
	}
	return strings.TrimSpace(string(out)), nil
}

// Combine renders per-command results as one newline-delimited blob in
// command order, with headers distinguishing successes from failures and
// stderr embedded inline on failure.
func Combine(commands []string, results map[string]CommandResult) string {
	var sb strings.Builder

	for _, command := range commands {
		result, ok := results[command]
		if !ok {
			continue
		}
		if result.Success {
			fmt.Fprintf(&sb, "\n=== %s ===\n", strings.ToUpper(command))
			sb.WriteString(result.Stdout)
			sb.WriteString("\n")
		} else {
			fmt.Fprintf(&sb, "\n=== %s (FAILED) ===\n", strings.ToUpper(command))
			fmt.Fprintf(&sb, "Error: %s\n", result.Stderr)
		}
	}

	return sb.String()
}
