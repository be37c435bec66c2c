package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// File is one document of a bundle.
type File struct {
	Name    string
	Entries []Entry
}

// Bundle is everything written for one root key: a directory of documents.
type Bundle struct {
	Dir   string
	Files []File
}

// Entries returns the entries of every file in file order.
func (b Bundle) Entries() []Entry {
	var out []Entry
	for _, f := range b.Files {
		out = append(out, f.Entries...)
	}
	return out
}

// RootDirName names the directory of one root key: "<name lowercased>_<key>".
func RootDirName(name string, key interface{}) string {
	return strings.ToLower(name) + "_" + sanitize(types.CanonicalKey(key))
}

// ReflectedFileName names the document of a reflected extraction: "<app>.<model>.json".
func ReflectedFileName(t schema.LogicalType) string {
	return t.String() + ".json"
}

// SplitFileName names the per-node document of a split declared extraction.
func SplitFileName(seq int, model string) string {
	return fmt.Sprintf("%03d_%s.json", seq, sanitize(model))
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_", string(os.PathSeparator), "_").Replace(s)
}

// Writer writes bundles below an output directory. A bundle directory is
// built in a temporary sibling and renamed into place, so a failed write
// leaves either the previous directory or nothing.
type Writer struct {
	outputDir string
	indent    int
	logger    *logger.Logger
}

// NewWriter creates a writer. A negative indent selects DefaultIndent.
func NewWriter(outputDir string, indent int, log *logger.Logger) *Writer {
	if indent < 0 {
		indent = DefaultIndent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Writer{outputDir: outputDir, indent: indent, logger: log}
}

// OutputDir returns the directory bundles are written to.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// Write writes a bundle and returns the final directory path.
func (w *Writer) Write(b Bundle) (string, error) {
	if b.Dir == "" || filepath.Base(b.Dir) != b.Dir || strings.HasPrefix(b.Dir, ".") {
		return "", fmt.Errorf("invalid bundle directory name %q", b.Dir)
	}
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.MkdirTemp(w.outputDir, "."+b.Dir+".tmp-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	seen := make(map[string]bool, len(b.Files))
	for _, f := range b.Files {
		if f.Name == "" || filepath.Base(f.Name) != f.Name {
			return "", fmt.Errorf("invalid file name %q", f.Name)
		}
		if seen[f.Name] {
			return "", fmt.Errorf("duplicate file name %q in bundle %s", f.Name, b.Dir)
		}
		seen[f.Name] = true

		data, err := Encode(f.Entries, w.indent)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(tmp, f.Name), data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return "", err
	}

	target := filepath.Join(w.outputDir, b.Dir)
	if err := replaceDir(tmp, target); err != nil {
		return "", err
	}
	committed = true

	w.logger.Debugw("Fixture written", "dir", target, "files", len(b.Files))
	return target, nil
}

// replaceDir renames src onto dst, moving an existing dst aside first and
// restoring it if the swap fails.
func replaceDir(src, dst string) error {
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to move fixture into place: %w", err)
		}
		return nil
	}

	backup := dst + ".old"
	_ = os.RemoveAll(backup)
	if err := os.Rename(dst, backup); err != nil {
		return fmt.Errorf("failed to move previous fixture aside: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(backup, dst)
		return fmt.Errorf("failed to move fixture into place: %w", err)
	}
	return os.RemoveAll(backup)
}

// ReadFile decodes one document.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadPath decodes a document, or every *.json document of a directory in
// name order.
func ReadPath(path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return ReadFile(path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var all []Entry
	for _, name := range names {
		entries, err := ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}
