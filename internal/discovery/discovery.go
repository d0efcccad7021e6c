// Package discovery finds the local files that become upload parts.
package discovery

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultPattern matches every entry in the root directory.
const DefaultPattern = "*"

// Finder resolves glob patterns against a filesystem.
type Finder struct {
	fs billy.Filesystem
}

// New returns a Finder over fs.
func New(fs billy.Filesystem) *Finder {
	return &Finder{fs: fs}
}

// NewOS returns a Finder rooted at dir on the local filesystem.
func NewOS(dir string) *Finder {
	return New(osfs.New(dir))
}

// Filesystem returns the filesystem paths are relative to.
func (f *Finder) Filesystem() billy.Filesystem {
	return f.fs
}

// SplitPattern moves the wildcard-free leading directories of an absolute
// pattern into the root, so that "/data/parts/*" becomes root "/data/parts"
// and pattern "*". Relative patterns are returned unchanged.
func SplitPattern(root, pattern string) (string, string) {
	if !filepath.IsAbs(pattern) {
		return root, pattern
	}

	volume := filepath.VolumeName(pattern)
	elems := strings.Split(strings.TrimPrefix(filepath.Clean(pattern)[len(volume):], string(filepath.Separator)), string(filepath.Separator))

	// The last element always stays in the pattern.
	i := 0
	for i < len(elems)-1 && !hasMeta(elems[i]) {
		i++
	}

	base := volume + string(filepath.Separator) + filepath.Join(elems[:i]...)
	return filepath.Clean(base), filepath.Join(elems[i:]...)
}

func hasMeta(elem string) bool {
	return strings.ContainsAny(elem, `*?[\`)
}

// Discover returns the regular files matching pattern, sorted by byte-wise
// comparison of their paths. Directories are excluded. Pattern is relative to
// the Finder root; pass absolute patterns through SplitPattern first.
func (f *Finder) Discover(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if filepath.IsAbs(pattern) {
		return nil, fmt.Errorf("absolute pattern %q: use a pattern relative to the root directory", pattern)
	}

	matches, err := util.Glob(f.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := f.fs.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", match, err)
		}
		if info.Mode().IsRegular() {
			files = append(files, match)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Size returns the size in bytes of the file at path.
func (f *Finder) Size(path string) (int64, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}
