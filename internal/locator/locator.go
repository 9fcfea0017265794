// Package locator finds the external converter executables fileconv shells out to.
package locator

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

// Tool identifies one of the external converters.
type Tool string

const (
	// Office is the LibreOffice headless converter used for document routes.
	Office Tool = "office"
	// ImageMagick is the image converter used for image routes.
	ImageMagick Tool = "imagemagick"
)

// Tools lists every tool the locator knows about.
var Tools = []Tool{Office, ImageMagick}

// canonicalNames are the executable names searched for on PATH, in preference order.
var canonicalNames = map[Tool][]string{
	Office:      {"soffice", "libreoffice"},
	ImageMagick: {"magick", "convert"},
}

// windowsNames replaces canonicalNames on Windows, where System32 ships an
// unrelated convert.exe (the FAT to NTFS converter).
var windowsNames = map[Tool][]string{
	Office:      {"soffice"},
	ImageMagick: {"magick"},
}

// Locator discovers tool paths. Lookups are cached for the lifetime of the
// Locator; SetPath overrides discovery.
type Locator struct {
	mu        sync.Mutex
	found     map[Tool]string
	searched  map[Tool]bool
	overrides map[Tool]string

	goos       string
	searchPath string
	candidates map[Tool][]string
}

// Option configures a Locator.
type Option func(*Locator)

// WithCandidates replaces the conventional install locations probed for tool.
// Entries may be glob patterns.
func WithCandidates(tool Tool, paths ...string) Option {
	return func(l *Locator) {
		l.candidates[tool] = paths
	}
}

// WithSearchPath replaces the PATH value scanned after the install locations.
func WithSearchPath(path string) Option {
	return func(l *Locator) {
		l.searchPath = path
	}
}

// New creates a Locator for the running platform.
func New(opts ...Option) *Locator {
	l := &Locator{
		found:      make(map[Tool]string),
		searched:   make(map[Tool]bool),
		overrides:  make(map[Tool]string),
		goos:       runtime.GOOS,
		searchPath: os.Getenv("PATH"),
	}
	home, _ := os.UserHomeDir()
	l.candidates = defaultCandidates(l.goos, home)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetPath pins the path of tool, bypassing discovery. An empty path clears the override.
func (l *Locator) SetPath(tool Tool, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if path == "" {
		delete(l.overrides, tool)
		return
	}
	l.overrides[tool] = path
}

// Locate returns the path of tool, or false when it is not installed.
func (l *Locator) Locate(tool Tool) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.overrides[tool]; ok {
		return p, true
	}
	if !l.searched[tool] {
		if p := l.search(tool); p != "" {
			l.found[tool] = p
		}
		l.searched[tool] = true
	}
	p, ok := l.found[tool]
	return p, ok
}

func (l *Locator) search(tool Tool) string {
	for _, pattern := range l.candidates[tool] {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		// Versioned install dirs (ImageMagick-7.1.1-Q16) sort newest last.
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		for _, m := range matches {
			if fileExists(m) {
				return m
			}
		}
	}

	for _, dir := range filepath.SplitList(l.searchPath) {
		if dir == "" {
			continue
		}
		for _, name := range l.names(tool) {
			p := filepath.Join(dir, name)
			if l.isExecutable(p) {
				return p
			}
		}
	}
	return ""
}

// names returns the executable file names searched for on PATH.
func (l *Locator) names(tool Tool) []string {
	if l.goos != "windows" {
		return canonicalNames[tool]
	}
	names := make([]string, 0, len(windowsNames[tool]))
	for _, n := range windowsNames[tool] {
		names = append(names, n+".exe")
	}
	return names
}

func (l *Locator) isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if l.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func defaultCandidates(goos, home string) map[Tool][]string {
	switch goos {
	case "windows":
		return map[Tool][]string{
			Office: {
				"C:/Program Files/LibreOffice/program/soffice.exe",
				"C:/Program Files (x86)/LibreOffice/program/soffice.exe",
				filepath.Join(home, "AppData/Local/Programs/LibreOffice/program/soffice.exe"),
			},
			ImageMagick: {
				"C:/Program Files/ImageMagick*/magick.exe",
				"C:/Program Files (x86)/ImageMagick*/magick.exe",
			},
		}
	case "darwin":
		return map[Tool][]string{
			Office: {
				"/Applications/LibreOffice.app/Contents/MacOS/soffice",
				"/opt/homebrew/bin/soffice",
				"/usr/local/bin/soffice",
			},
			ImageMagick: {
				"/opt/homebrew/bin/magick",
				"/usr/local/bin/magick",
			},
		}
	default:
		return map[Tool][]string{
			Office: {
				"/usr/bin/soffice",
				"/usr/bin/libreoffice",
				"/usr/lib/libreoffice/program/soffice",
				"/opt/libreoffice*/program/soffice",
				"/snap/bin/libreoffice",
			},
			ImageMagick: {
				"/usr/bin/magick",
				"/usr/local/bin/magick",
				"/usr/bin/convert",
			},
		}
	}
}
