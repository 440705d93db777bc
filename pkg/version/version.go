package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	build Build

	// set at build time via -ldflags
	version   string
	gitSHA    string
	buildTime string
)

// Build holds details about this build of the binary
type Build struct {
	Version   string    `json:"version,omitempty"`
	GitSHA    string    `json:"git,omitempty"`
	BuildTime time.Time `json:"buildTime,omitempty"`
	GoInfo    GoInfo    `json:"go,omitempty"`
}

type GoInfo struct {
	Version  string `json:"version,omitempty"`
	Compiler string `json:"compiler,omitempty"`
	OS       string `json:"os,omitempty"`
	Arch     string `json:"arch,omitempty"`
}

func initBuild() {
	build.Version = version
	if build.Version == "" {
		build.Version = "dev"
	}

	if len(gitSHA) >= 7 {
		build.GitSHA = gitSHA[:7]
	}

	if buildTime != "" {
		if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
			build.BuildTime = t
		}
	}

	build.GoInfo = GoInfo{
		Version:  runtime.Version(),
		Compiler: runtime.Compiler,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// GetBuild returns the details of this build
func GetBuild() Build {
	if build.Version == "" {
		initBuild()
	}
	return build
}

// Version returns the version of this binary
func Version() string {
	return GetBuild().Version
}

// UserAgent returns the user agent this binary should send in http requests
func UserAgent() string {
	return fmt.Sprintf("Aerohealth/%s", Version())
}
