// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// LibraryRoot is one watched library root directory.
type LibraryRoot struct {
	LibraryID string
	Path      string
	Kind      job.FolderKind
}

const (
	defaultDebounceInterval = 2 * time.Second
	// internalQueueSize bounds the buffer between the raw fsnotify reader
	// and the debounce goroutine; a full queue means events are arriving
	// faster than they can be coalesced, so we fall back to a
	// library-wide rescan instead of blocking the fsnotify reader.
	internalQueueSize = 256
)

type rawEvent struct {
	root  LibraryRoot
	path  string
	isDir bool
	op    fsnotify.Op
}

type pendingTarget struct {
	libraryID string
	folder    string
	kind      job.FolderKind
	reason    job.ScanReason
}

// Watcher coalesces filesystem notifications across every watched
// library root into FolderScan enqueues (§4.7).
type Watcher struct {
	Enqueuer pipeline.Enqueuer
	Index    pipeline.IndexStore
	Window   *CoalesceWindow

	// DebounceInterval is how long pending targets accumulate before
	// being flushed as FolderScan enqueues. Defaults to 2s.
	DebounceInterval time.Duration

	fs    *fsnotify.Watcher
	roots []LibraryRoot

	queue chan rawEvent

	mu         sync.Mutex
	pending    map[string]pendingTarget
	overflowed map[string]LibraryRoot
}

// New builds a Watcher. Call Watch for each library root before Serve.
func New(enq pipeline.Enqueuer, index pipeline.IndexStore, window *CoalesceWindow) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		Enqueuer:   enq,
		Index:      index,
		Window:     window,
		fs:         fsw,
		queue:      make(chan rawEvent, internalQueueSize),
		pending:    make(map[string]pendingTarget),
		overflowed: make(map[string]LibraryRoot),
	}, nil
}

// Watch adds a library root to the watch set, recursively watching every
// subdirectory present at call time. Directories created later are added
// as their parent's Create event is processed.
func (w *Watcher) Watch(root LibraryRoot) error {
	w.roots = append(w.roots, root)
	return filepath.WalkDir(root.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if werr := w.fs.Add(p); werr != nil {
				logging.Warn().Err(werr).Str("path", p).Msg("watch: failed to add directory")
			}
		}
		return nil
	})
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Serve implements suture.Service: reads fsnotify events, coalesces them
// into FolderScan enqueues on a debounce timer.
func (w *Watcher) Serve(ctx context.Context) error {
	interval := w.DebounceInterval
	if interval <= 0 {
		interval = defaultDebounceInterval
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.readLoop(ctx)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case ev := <-w.queue:
			w.handleEvent(ctx, ev)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) String() string { return "file-watcher" }

// readLoop drains fsnotify's native channels and forwards resolved
// events onto the internal queue. A full queue is treated as the
// overflow condition (§SPEC_FULL C7): the event is dropped and the
// owning root is marked for a WatcherOverflow rescan on the next flush.
func (w *Watcher) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			root, ok := w.rootFor(ev.Name)
			if !ok {
				continue
			}
			isDir := w.isDirHint(ev)
			if ev.Op&fsnotify.Create == fsnotify.Create && isDir {
				if err := w.fs.Add(ev.Name); err != nil {
					logging.Warn().Err(err).Str("path", ev.Name).Msg("watch: failed to add new directory")
				}
			}
			re := rawEvent{root: root, path: ev.Name, isDir: isDir, op: ev.Op}
			select {
			case w.queue <- re:
			default:
				w.markOverflow(root)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("watch: fsnotify error")
		}
	}
}

func (w *Watcher) markOverflow(root LibraryRoot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overflowed[root.LibraryID] = root
	logging.Warn().Str("library_id", root.LibraryID).Msg("watch: internal event queue full, scheduling WatcherOverflow rescan")
}

// isDirHint guesses whether an event path names a directory. fsnotify
// doesn't report this directly; a Remove/Rename on a deleted path can't
// be stat'd, so those are treated as files (the safer assumption for
// the index-removal side effect).
func (w *Watcher) isDirHint(ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Remove == fsnotify.Remove || ev.Op&fsnotify.Rename == fsnotify.Rename {
		return false
	}
	return isExistingDir(ev.Name)
}

func isExistingDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) rootFor(path string) (LibraryRoot, bool) {
	var best LibraryRoot
	found := false
	for _, r := range w.roots {
		rel, err := filepath.Rel(r.Path, path)
		if err != nil || rel == "." {
			if err == nil && rel == "." {
				if !found || len(r.Path) > len(best.Path) {
					best, found = r, true
				}
			}
			continue
		}
		if strings.HasPrefix(rel, "..") {
			continue
		}
		if !found || len(r.Path) > len(best.Path) {
			best, found = r, true
		}
	}
	return best, found
}

func (w *Watcher) handleEvent(ctx context.Context, ev rawEvent) {
	switch {
	case ev.op&fsnotify.Remove == fsnotify.Remove:
		w.handleDelete(ctx, ev)
	case ev.op&fsnotify.Rename == fsnotify.Rename:
		// fsnotify reports a rename as Remove-at-old-path + Create-at-new-path
		// (the old path's watch is implicitly dropped by the kernel); treat
		// the old path like a delete so the index doesn't retain a dangling
		// entry, matching the original's move-handling (delete old, scan new).
		w.handleDelete(ctx, ev)
	case ev.op&(fsnotify.Create|fsnotify.Write) != 0:
		w.handleChange(ev)
	}
}

func (w *Watcher) handleDelete(ctx context.Context, ev rawEvent) {
	if w.Index == nil {
		return
	}
	if err := w.Index.Remove(ctx, ev.root.LibraryID, ev.path); err != nil {
		logging.Warn().Err(err).Str("path", ev.path).Msg("watch: remove from index failed")
	}
}

func (w *Watcher) handleChange(ev rawEvent) {
	folder, kind := TargetFolder(ev.root.Kind, ev.path, ev.isDir)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.root.LibraryID+":"+folder] = pendingTarget{
		libraryID: ev.root.LibraryID,
		folder:    folder,
		kind:      kind,
		reason:    job.ReasonHotChange,
	}
}

// flush enqueues a FolderScan for every coalesced target accumulated
// since the last tick, plus a library-wide rescan for any root that hit
// the overflow condition.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	targets := w.pending
	w.pending = make(map[string]pendingTarget)
	overflowed := w.overflowed
	w.overflowed = make(map[string]LibraryRoot)
	w.mu.Unlock()

	for _, t := range targets {
		w.enqueueScan(ctx, t.libraryID, t.folder, t.kind, t.reason)
	}
	for _, root := range overflowed {
		w.enqueueScan(ctx, root.LibraryID, root.Path, root.Kind, job.ReasonWatcherOverflow)
	}
}

func (w *Watcher) enqueueScan(ctx context.Context, libraryID, folder string, kind job.FolderKind, reason job.ScanReason) {
	if w.Window != nil {
		ok, err := w.Window.ShouldTrigger(libraryID, folder)
		if err != nil {
			logging.Warn().Err(err).Str("path", folder).Msg("watch: coalesce window check failed")
		} else if !ok {
			return
		}
	}

	req := job.EnqueueRequest{
		Payload: job.FolderScanPayload{
			Context: job.FolderContext{
				LibraryID: libraryID,
				Path:      folder,
				Kind:      kind,
			},
			ScanReason:  reason,
			EnqueueTime: time.Now().UTC(),
		},
		Priority:    reason.DefaultPriority(),
		AllowMerge:  true,
		RequestedAt: time.Now().UTC(),
	}
	if _, err := w.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true}); err != nil {
		logging.Warn().Err(err).Str("path", folder).Msg("watch: enqueue folder scan failed")
	}
}
