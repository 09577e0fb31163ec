package router

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LexiconWatcher hot-reloads the lexicon file on change so keyword tuning
// takes effect without a restart. A reload that fails to parse keeps the
// previous lexicon in place.
type LexiconWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	path    string
	apply   func(*Lexicon)
	logger  *zap.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewLexiconWatcher watches path and calls apply with each successfully
// reloaded lexicon.
func NewLexiconWatcher(path string, apply func(*Lexicon), logger *zap.Logger) (*LexiconWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &LexiconWatcher{
		watcher: w,
		path:    path,
		apply:   apply,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; events are handled in a goroutine.
func (w *LexiconWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save
	// and a file watch dies with the old inode.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

func (w *LexiconWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("lexicon watcher error", zap.Error(err))
		}
	}
}

func (w *LexiconWatcher) reload() {
	lex, err := LoadLexicon(w.path)
	if err != nil {
		w.logger.Warn("lexicon reload failed, keeping previous table",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}
	w.apply(lex)
	w.logger.Info("lexicon reloaded",
		zap.String("path", w.path),
		zap.Int("domains", len(lex.Domains)))
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *LexiconWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("closing lexicon watcher", zap.Error(err))
	}
}
