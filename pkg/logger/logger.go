/*
Logging setup for the aerohealth backend.

# Logging levels

0: progress information surfaced to operators by default.

1: high level logs within each component (resolver/runner/extractor/store). A
log such as "extractor fell back to deterministic parsing" belongs here.

2: everything else. If you do not know which level to use, use this level.

Do not log errors in functions that return an error. Instead, return the
error and let the caller log it.
*/
package logger

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

var lock sync.Mutex

// InitKlogFlags initializes klog flags and exposes the verbosity flag on the
// cobra command's flag set.
func InitKlogFlags(flags *pflag.FlagSet) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			flags.AddGoFlag(f)
		}
	})
}

// InitKlog initializes klog with a specific verbosity. Useful in tests that
// want instrumented logs.
func InitKlog(verbosity int) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			f.Value.Set(fmt.Sprintf("%d", verbosity))
		}
	})
}

// SetupLogger sets up the klog logger based on viper configuration.
func SetupLogger(v *viper.Viper) {
	quiet := !v.GetBool("debug") && !v.IsSet("v")
	SetQuiet(quiet)
}

// SetQuiet enables or disables the klog logger.
func SetQuiet(quiet bool) {
	lock.Lock()
	defer lock.Unlock()

	if quiet {
		klog.SetLogger(logr.Discard())
	} else {
		klog.ClearLogger()
	}
}

// SetupFileLogging points klog at <dir>/backend.log in addition to stderr.
// Any log file left over from a previous run is truncated first. Returns the
// log file path.
func SetupFileLogging(dir string, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create log directory")
	}

	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", errors.Wrap(err, "failed to open log file")
	}

	lock.Lock()
	defer lock.Unlock()
	klog.LogToStderr(false)
	klog.SetOutput(io.MultiWriter(os.Stderr, f))

	return path, nil
}

// ClearLogs removes every *.log file under dir. Missing dir is not an error.
func ClearLogs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to glob log files")
	}

	removed := []string{}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return removed, errors.Wrapf(err, "failed to remove %s", m)
		}
		removed = append(removed, m)
	}
	return removed, nil
}
