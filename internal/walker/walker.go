// Package walker discovers indexable files under a project root, applying
// hidden-entry, global-glob, layered-gitignore, and extension-allowlist
// rules in that order.
package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wb200/wb-grep/internal/gitignore"
)

const ignoreMatcherCacheSize = 256

// StoreDirName is the on-disk directory wb-grep uses for its own state and
// is always skipped during a walk.
const StoreDirName = ".wb-grep"

// alwaysIgnoredDirs are skipped regardless of ignore files.
var alwaysIgnoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	StoreDirName:   true,
}

// Walker discovers indexable files under Root, honoring .gitignore and
// .wbgrepignore files found along the way plus any Extra patterns from
// configuration.
type Walker struct {
	Root  string
	Extra []string

	cache *lru.Cache[string, *gitignore.Matcher]
}

// New creates a Walker rooted at root with additional ignore patterns
// (typically from config's ignore.extra).
func New(root string, extra []string) *Walker {
	cache, _ := lru.New[string, *gitignore.Matcher](ignoreMatcherCacheSize)
	return &Walker{Root: root, Extra: extra, cache: cache}
}

// Walk emits the absolute path of every indexable file under w.Root on the
// returned channel, then closes it. Readdir errors are logged and the
// affected subtree is silently skipped.
func (w *Walker) Walk() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		_ = filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Debug("walker: readdir error, skipping subtree", slog.String("path", path), slog.String("error", err.Error()))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if path == w.Root {
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if alwaysIgnoredDirs[name] || isHidden(name) {
					return filepath.SkipDir
				}
				if w.IsIgnored(path, true) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(name) {
				return nil
			}
			if w.IsIgnored(path, false) {
				return nil
			}
			if !w.allowlisted(path) {
				return nil
			}
			out <- path
			return nil
		})
	}()
	return out
}

// IsIgnored reports whether absPath should be excluded per the global glob
// set and the layered .gitignore/.wbgrepignore rules. It does not apply the
// extension allowlist, so it can be used standalone by the watcher to
// re-check an arbitrary event path.
func (w *Walker) IsIgnored(absPath string, isDir bool) bool {
	rel, err := filepath.Rel(w.Root, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)

	for _, pat := range globalIgnorePatterns {
		if ok, _ := filepath.Match(pat, filepath.Base(absPath)); ok {
			return true
		}
	}

	m, err := w.matcherFor(filepath.Dir(absPath))
	if err != nil {
		slog.Debug("walker: failed to build ignore matcher", slog.String("path", absPath), slog.String("error", err.Error()))
		return false
	}
	return m.Match(rel, isDir)
}

// allowlisted reports whether path's extension or bare filename is in the
// code-extension allowlist.
func (w *Walker) allowlisted(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if specialFilenames[base] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return codeExtensions[ext]
}

// matcherFor returns the cached, fully-layered matcher for dir: patterns
// from every .gitignore/.wbgrepignore found from w.Root down to dir, plus
// w.Extra and the caller's ignore config, each scoped with a base so nested
// rules only apply under their own directory.
func (w *Walker) matcherFor(dir string) (*gitignore.Matcher, error) {
	if m, ok := w.cache.Get(dir); ok {
		return m, nil
	}

	m := gitignore.New()
	for _, p := range w.Extra {
		m.AddPattern(p)
	}

	rel, err := filepath.Rel(w.Root, dir)
	if err != nil {
		rel = "."
	}
	rel = filepath.ToSlash(rel)

	segments := []string{}
	if rel != "." && rel != "" {
		segments = strings.Split(rel, "/")
	}

	cur := w.Root
	base := ""
	loadAt := func(d, base string) {
		for _, name := range []string{".gitignore", ".wbgrepignore"} {
			p := filepath.Join(d, name)
			if _, statErr := os.Stat(p); statErr == nil {
				_ = m.AddFromFile(p, base)
			}
		}
	}
	loadAt(cur, "")
	for _, seg := range segments {
		cur = filepath.Join(cur, seg)
		if base == "" {
			base = seg
		} else {
			base = base + "/" + seg
		}
		loadAt(cur, base)
	}

	w.cache.Add(dir, m)
	return m, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// IsHidden reports whether name (a base name, not a path) is a dotfile.
func IsHidden(name string) bool { return isHidden(name) }

// IsAlwaysIgnoredDir reports whether name is unconditionally skipped
// (.git, node_modules, dist, build, the wb-grep store directory) regardless
// of any ignore file.
func IsAlwaysIgnoredDir(name string) bool { return alwaysIgnoredDirs[name] }
