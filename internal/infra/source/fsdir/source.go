package fsdir

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// DefaultIgnoreFile is looked up inside the images directory.
const DefaultIgnoreFile = ".taggerignore"

// Options configures a directory source.
type Options struct {
	Dir string
	// Pattern is a doublestar glob relative to Dir. Empty means "*"+Extension.
	Pattern   string
	Extension string
	// IgnoreFile holds gitignore-style rules. Relative paths resolve inside Dir.
	IgnoreFile string
}

// Source lists images in a directory.
type Source struct {
	dir     string
	pattern string
	ignore  gitignore.GitIgnore
}

func New(opts Options) (*Source, error) {
	pattern := opts.Pattern
	if pattern == "" {
		ext := opts.Extension
		if ext == "" {
			ext = ".jpg"
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		pattern = "*" + ext
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid image pattern %q", pattern)
	}

	s := &Source{dir: opts.Dir, pattern: pattern}
	if opts.IgnoreFile != "" {
		ignorePath := opts.IgnoreFile
		if !filepath.IsAbs(ignorePath) {
			ignorePath = filepath.Join(opts.Dir, ignorePath)
		}
		s.ignore = loadIgnoreFile(ignorePath, opts.Dir)
	}
	return s, nil
}

// List returns one item per matching regular file. Keys are Dir joined with the
// relative match, so they stay stable across runs.
func (s *Source) List() ([]domain.Item, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.dir)
	}

	fsys := os.DirFS(s.dir)
	matches, err := doublestar.Glob(fsys, s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(matches))
	for _, rel := range matches {
		if s.ignored(rel) {
			continue
		}
		if st, err := fs.Stat(fsys, rel); err != nil || !st.Mode().IsRegular() {
			continue
		}
		items = append(items, domain.Item{
			Key:      filepath.Join(s.dir, filepath.FromSlash(rel)),
			Filename: path.Base(rel),
		})
	}
	return items, nil
}

func (s *Source) ignored(rel string) bool {
	if s.ignore == nil {
		return false
	}
	match := s.ignore.Relative(rel, false)
	return match != nil && match.Ignore()
}

func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
