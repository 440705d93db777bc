// Package locate finds the diagnostic report inside an extracted collectinfo
// tree. Bundles have no fixed internal layout across asadm versions, so the
// locator degrades from specific signals (filename markers) to generic ones
// (any readable text that mentions the cluster).
package locate

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrReportNotFound is returned when the locator cascade is exhausted.
var ErrReportNotFound = errors.New("no health report file found in collectinfo archive")

// contentKeywords mark a file as a plausible report when found in its first
// 1000 characters.
var contentKeywords = []string{"cluster", "namespace", "aerospike", "summary"}

// Locate returns the single most likely diagnostic-report file under dir.
// The cascade, first match wins:
//
//  1. any file whose name contains "health" or "report"
//  2. any .txt file, in traversal order
//  3. any non-empty file whose first line is readable text longer than 10 chars
//  4. any file over 100 bytes whose first 1000 chars contain a content keyword
func Locate(dir string) (string, error) {
	if p := findByName(dir); p != "" {
		klog.V(1).Infof("found health report by name: %s", p)
		return p, nil
	}
	if p := findByExtension(dir, ".txt"); p != "" {
		klog.V(1).Infof("found health report by extension: %s", p)
		return p, nil
	}
	if p := findByReadableFirstLine(dir, 0); p != "" {
		klog.V(1).Infof("found health report by text sniffing: %s", p)
		return p, nil
	}
	if p := findByContentKeyword(dir); p != "" {
		klog.V(1).Infof("found health report by content keywords: %s", p)
		return p, nil
	}
	return "", errors.Wrapf(ErrReportNotFound, "searched in %s", dir)
}

// CollectinfoRoot returns the directory or file named with the collectinfo
// marker, or dir itself when no such entry exists. The runner is handed this
// path because asadm in collectinfo mode expects the bundle root, not an
// individual report file.
func CollectinfoRoot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), "collectinfo") {
				return filepath.Join(dir, e.Name())
			}
		}
	}

	var match string
	_ = walkFiles(dir, func(path string, size int64) bool {
		if strings.Contains(strings.ToLower(filepath.Base(path)), "collectinfo") {
			match = path
			return true
		}
		return false
	})
	if match != "" {
		return match
	}
	return dir
}

// CollectinfoFile resolves a collectinfo root to the actual data file asadm
// should read. Pattern matches are tried most-specific first with a minimum
// size gate; failing that, any large readable text file is accepted.
func CollectinfoFile(root string) (string, bool) {
	info, err := os.Stat(root)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return root, true
	}

	patterns := []string{"*collectinfo*", "*aerospike*", "*.asadm", "*.txt", "*.log"}
	for _, pattern := range patterns {
		var match string
		_ = walkFiles(root, func(path string, size int64) bool {
			if ok, _ := filepath.Match(pattern, strings.ToLower(filepath.Base(path))); ok && size > 1000 {
				match = path
				return true
			}
			return false
		})
		if match != "" {
			return match, true
		}
	}

	if p := findByReadableFirstLine(root, 10000); p != "" {
		return p, true
	}
	return "", false
}

func findByName(dir string) string {
	var match string
	_ = walkFiles(dir, func(path string, size int64) bool {
		name := strings.ToLower(filepath.Base(path))
		if strings.Contains(name, "health") || strings.Contains(name, "report") {
			match = path
			return true
		}
		return false
	})
	return match
}

func findByExtension(dir string, ext string) string {
	var match string
	_ = walkFiles(dir, func(path string, size int64) bool {
		if strings.EqualFold(filepath.Ext(path), ext) {
			match = path
			return true
		}
		return false
	})
	return match
}

func findByReadableFirstLine(dir string, minSize int64) string {
	var match string
	_ = walkFiles(dir, func(path string, size int64) bool {
		if size <= minSize {
			return false
		}
		if line, ok := firstLine(path); ok && len(strings.TrimSpace(line)) > 10 {
			match = path
			return true
		}
		return false
	})
	return match
}

func findByContentKeyword(dir string) string {
	var match string
	_ = walkFiles(dir, func(path string, size int64) bool {
		if size <= 100 {
			return false
		}
		head, err := readHead(path, 1000)
		if err != nil {
			return false
		}
		lower := strings.ToLower(head)
		for _, kw := range contentKeywords {
			if strings.Contains(lower, kw) {
				match = path
				return true
			}
		}
		return false
	})
	return match
}

// walkFiles visits every regular file under dir in traversal order, stopping
// early when fn returns true.
func walkFiles(dir string, fn func(path string, size int64) bool) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			klog.V(2).Infof("skipping %s: %v", path, err)
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		if fn(path, info.Size()) {
			return filepath.SkipAll
		}
		return nil
	})
}

func firstLine(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return "", false
	}
	line := scanner.Text()
	if !utf8.ValidString(line) || strings.ContainsRune(line, '\x00') {
		return "", false
	}
	return line, true
}

func readHead(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return "", err
	}
	return string(buf[:read]), nil
}
