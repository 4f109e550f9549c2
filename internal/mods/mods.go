// Package mods inspects the game server's mods directory and extracts
// display metadata from the .jar archives found there.
package mods

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultCacheTTL = 5 * time.Minute

// Info describes a single installed mod.
type Info struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	ModID    string `json:"mod_id"`
	FileName string `json:"file_name"`
}

// Scanner lists the .jar files of a mods directory. Results are cached
// for a TTL because a scan opens every archive.
type Scanner struct {
	dir string
	ttl time.Duration

	mu       sync.Mutex
	cached   []Info
	lastScan time.Time
}

func NewScanner(dir string, ttl time.Duration) *Scanner {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Scanner{dir: dir, ttl: ttl}
}

// Scan returns the installed mods sorted by name. A cached result is
// returned while it is fresh unless forceRefresh is set. A missing mods
// directory is not an error, it just means no mods.
func (s *Scanner) Scan(forceRefresh bool) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceRefresh && !s.lastScan.IsZero() && time.Since(s.lastScan) < s.ttl {
		return s.cached, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.cached = nil
			s.lastScan = time.Now()
			return nil, nil
		}
		return nil, err
	}

	mods := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jar") {
			continue
		}
		mods = append(mods, parseJar(filepath.Join(s.dir, e.Name())))
	}
	sort.Slice(mods, func(i, j int) bool {
		return strings.ToLower(mods[i].Name) < strings.ToLower(mods[j].Name)
	})

	s.cached = mods
	s.lastScan = time.Now()
	return mods, nil
}

// Count returns the number of installed mods.
func (s *Scanner) Count() (int, error) {
	mods, err := s.Scan(false)
	return len(mods), err
}

// parseJar tries the known metadata formats in order and falls back to
// the filename when none matches.
func parseJar(path string) Info {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	fallback := Info{Name: stem, Version: "Unknown", FileName: base}

	r, err := zip.OpenReader(path)
	if err != nil {
		return fallback
	}
	defer func() { _ = r.Close() }()

	if info, ok := parseFabricModJSON(&r.Reader, stem, base); ok {
		return info
	}
	if info, ok := parseForgeModsTOML(&r.Reader, stem, base); ok {
		return info
	}
	if info, ok := parseManifest(&r.Reader, base); ok {
		return info
	}
	return fallback
}

func readArchiveFile(r *zip.Reader, name string) ([]byte, bool) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer func() { _ = rc.Close() }()
		b, err := io.ReadAll(io.LimitReader(rc, 1<<20))
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

func parseFabricModJSON(r *zip.Reader, stem, fileName string) (Info, bool) {
	b, ok := readArchiveFile(r, "fabric.mod.json")
	if !ok {
		return Info{}, false
	}
	var meta struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return Info{}, false
	}
	info := Info{Name: meta.Name, Version: meta.Version, ModID: meta.ID, FileName: fileName}
	if info.Name == "" {
		info.Name = stem
	}
	if info.Version == "" {
		info.Version = "Unknown"
	}
	return info, true
}

var (
	forgeModIDRe   = regexp.MustCompile(`modId\s*=\s*["']([^"']+)["']`)
	forgeVersionRe = regexp.MustCompile(`version\s*=\s*["']([^"']+)["']`)
	forgeNameRe    = regexp.MustCompile(`displayName\s*=\s*["']([^"']+)["']`)
)

func parseForgeModsTOML(r *zip.Reader, stem, fileName string) (Info, bool) {
	b, ok := readArchiveFile(r, "META-INF/mods.toml")
	if !ok {
		return Info{}, false
	}
	content := string(b)
	info := Info{Name: stem, Version: "Unknown", FileName: fileName}
	if m := forgeNameRe.FindStringSubmatch(content); m != nil {
		info.Name = m[1]
	}
	if m := forgeVersionRe.FindStringSubmatch(content); m != nil {
		info.Version = m[1]
	}
	if m := forgeModIDRe.FindStringSubmatch(content); m != nil {
		info.ModID = m[1]
	}
	return info, true
}

func parseManifest(r *zip.Reader, fileName string) (Info, bool) {
	b, ok := readArchiveFile(r, "META-INF/MANIFEST.MF")
	if !ok {
		return Info{}, false
	}
	var title, version string
	for _, line := range strings.Split(string(b), "\n") {
		if v, found := strings.CutPrefix(line, "Implementation-Title:"); found {
			title = strings.TrimSpace(v)
		}
		if v, found := strings.CutPrefix(line, "Implementation-Version:"); found {
			version = strings.TrimSpace(v)
		}
	}
	if title == "" {
		return Info{}, false
	}
	if version == "" {
		version = "Unknown"
	}
	return Info{Name: title, Version: version, FileName: fileName}, true
}
