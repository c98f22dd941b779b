// Package watchfeed monitors a vault's source directory for file changes
// and incrementally re-indexes the knowledge vault, debouncing bursts of
// writes the way editors and sync clients produce them.
package watchfeed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tripartite-ai/consensus-core/internal/knowledge"
)

// skipDirs lists directories whose contents are never watched or indexed.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".obsidian":    true,
}

// debounceDelay is how long the feed waits after the last change to a file
// before re-indexing it, so a burst of saves collapses into one reindex.
const debounceDelay = 2 * time.Second

// DocTyper classifies a file path into the knowledge vault's doc_type
// (code/docs/notes/other) used by the composite relevance score.
type DocTyper func(path string) string

// DefaultDocTyper classifies by file extension: source files are "code",
// markdown/text are "docs", everything else is "other".
func DefaultDocTyper(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".py", ".js", ".ts", ".rs", ".java", ".c", ".cpp":
		return "code"
	case ".md", ".txt", ".rst":
		return "docs"
	default:
		return "other"
	}
}

// Feed watches rootPath for file changes and keeps vault in sync. Feed
// blocks until ctx is done or an unrecoverable watcher error occurs.
type Feed struct {
	vault    *knowledge.Vault
	rootPath string
	docType  DocTyper
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New builds a Feed over vault rooted at rootPath. A nil logger falls back
// to slog.Default(); a nil docType falls back to DefaultDocTyper.
func New(vault *knowledge.Vault, rootPath string, docType DocTyper, logger *slog.Logger) *Feed {
	if docType == nil {
		docType = DefaultDocTyper
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		vault:    vault,
		rootPath: rootPath,
		docType:  docType,
		logger:   logger,
		pending:  make(map[string]bool),
	}
}

// Run starts the fsnotify watch loop. It returns when ctx is cancelled or
// the underlying watcher fails to start.
func (f *Feed) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := f.walkDirs()
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			f.logger.Warn("cannot watch directory", "dir", d, "error", err)
		}
	}
	f.logger.Info("watching vault directory", "dirs", len(dirs), "root", f.rootPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			f.handleEvent(ctx, w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watch error", "error", err)
		}
	}
}

func (f *Feed) handleEvent(ctx context.Context, w *fsnotify.Watcher, event fsnotify.Event) {
	if !f.isIndexable(event.Name) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if !skipDirs[filepath.Base(event.Name)] {
					_ = w.Add(event.Name)
				}
			}
		}
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
		f.schedule(ctx, event.Name)
	}

	if event.Has(fsnotify.Remove) {
		rel := f.relativePath(event.Name)
		if _, err := f.vault.DeleteDocumentByPath(rel); err != nil {
			f.logger.Warn("remove from index failed", "path", rel, "error", err)
		} else {
			f.logger.Info("removed from index", "path", rel)
		}
	}
}

func (f *Feed) isIndexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".go", ".py", ".js", ".ts", ".rst":
		return true
	default:
		return false
	}
}

func (f *Feed) schedule(ctx context.Context, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[path] = true
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(debounceDelay, func() { f.flush(ctx) })
}

func (f *Feed) flush(ctx context.Context) {
	f.mu.Lock()
	paths := make([]string, 0, len(f.pending))
	for p := range f.pending {
		paths = append(paths, p)
	}
	f.pending = make(map[string]bool)
	f.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	f.logger.Info("reindexing changed files", "count", len(paths))
	for _, fp := range paths {
		if ctx.Err() != nil {
			return
		}
		f.reindexOne(fp)
	}
}

func (f *Feed) reindexOne(path string) {
	rel := f.relativePath(path)
	content, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("read file failed", "path", rel, "error", err)
		return
	}
	docType := f.docType(path)
	if _, err := f.vault.AddDocument(rel, string(content), docType); err != nil {
		f.logger.Warn("index file failed", "path", rel, "error", err)
		return
	}
	f.logger.Info("indexed file", "path", rel, "doc_type", docType)
}

func (f *Feed) walkDirs() []string {
	var dirs []string
	filepath.WalkDir(f.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}

func (f *Feed) relativePath(path string) string {
	rel, err := filepath.Rel(f.rootPath, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
