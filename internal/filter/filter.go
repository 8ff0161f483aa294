// Package filter implements a hot-reloadable set of numeric subscriber
// identifiers used to suppress cache writes for opted-out users.
//
// The set is published via a single atomic index flip between two snapshot
// slots (the same double-buffer idiom used elsewhere in this codebase for
// lock-free publication of infrequently-changing state): a background
// refresher rebuilds the non-current slot from the filter file and then
// flips the index, so concurrent readers never observe a partially built
// snapshot and never block on the writer.
package filter

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/radius-cacher/internal/logger"
	"github.com/marmos91/radius-cacher/internal/metrics"
)

var digitsRe = regexp.MustCompile(`[[:digit:]]+`)

// Source fetches the raw bytes of the filter file. The default is a plain
// local file open (localSource); NewWithSource lets the S3-backed loader
// (internal/config) substitute a remote fetch without changing the reload
// algorithm.
type Source func(path string) (io.ReadCloser, error)

func localSource(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Filter is a concurrent-read, single-writer set of uint64 identifiers.
//
// Three independent goroutines can trigger a reload (the timer-based
// refresher, the fsnotify watcher, and an operator-triggered admin HTTP
// call via Reload), but the double-buffer publication scheme in reload is
// only race-free under a single writer at a time (see package docs above).
// writeMu serializes those writers; readers never take it and stay
// wait-free.
type Filter struct {
	path     string
	interval time.Duration
	source   Source
	metrics  *metrics.Metrics

	writeMu sync.Mutex

	// snapshots holds both buffers; current indexes into it. Readers load
	// current once per query; the writer only ever touches the other slot
	// before publishing it.
	snapshots [2][]uint64
	current   atomic.Uint32

	watcher *fsnotify.Watcher
}

// New constructs a Filter, performing an initial synchronous load before
// returning. Callers must not accept packets until New returns, since an
// early packet would otherwise bypass the filter entirely.
//
// If interval > 0, a background refresher is started that reloads every
// interval until ctx is cancelled. m may be nil if reload metrics aren't
// wanted.
func New(ctx context.Context, path string, interval time.Duration, m *metrics.Metrics) *Filter {
	return NewWithSource(ctx, path, interval, localSource, m)
}

// NewWithSource is New but with an explicit Source, e.g. an S3-object
// fetcher (see internal/config) instead of a local file open.
func NewWithSource(ctx context.Context, path string, interval time.Duration, source Source, m *metrics.Metrics) *Filter {
	f := &Filter{
		path:     path,
		interval: interval,
		source:   source,
		metrics:  m,
	}
	f.reload()

	if interval > 0 {
		go f.refreshLoop(ctx)
	}
	if source == nil || isLocalPath(path) {
		f.startWatch(ctx)
	}
	return f
}

func isLocalPath(path string) bool {
	return !strings.Contains(path, "://")
}

// Contains reports whether x is present in the currently published
// snapshot. Safe for any number of concurrent callers.
func (f *Filter) Contains(x uint64) bool {
	snap := f.snapshots[f.current.Load()]
	i := sort.Search(len(snap), func(i int) bool { return snap[i] >= x })
	return i < len(snap) && snap[i] == x
}

// Len returns the size of the currently published snapshot.
func (f *Filter) Len() int {
	return len(f.snapshots[f.current.Load()])
}

// Reload forces an immediate synchronous reload, independent of the
// interval-based refresher. Exposed so the admin HTTP surface can trigger
// an out-of-band reload without waiting for the next tick.
func (f *Filter) Reload() {
	f.reload()
}

func (f *Filter) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.reload()
		}
	}
}

// startWatch layers an fsnotify-triggered reload on top of the mandatory
// timer-based refresher above. It only shortens typical staleness; a missed
// or coalesced event still self-heals at the next timer tick, so a watch
// failure here is logged once and otherwise ignored.
func (f *Filter) startWatch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("filter: fsnotify unavailable, relying on timer refresh only", logger.Err(err))
		return
	}
	dir := dirOf(f.path)
	if err := w.Add(dir); err != nil {
		logger.Warn("filter: cannot watch filter directory, relying on timer refresh only",
			logger.Source(dir), logger.Err(err))
		w.Close()
		return
	}
	f.watcher = w

	go func() {
		defer w.Close()
		var debounce *time.Timer
		pending := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			case <-pending:
				f.reload()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// reload rebuilds the non-current snapshot and atomically publishes it.
//
// Opening the file is allowed to fail transiently (the file may be mid-
// rewrite by a deploy tool); on failure the existing snapshot is left
// untouched rather than emptied.
//
// The whole method runs under writeMu: it may be called concurrently from
// the timer refresher, the fsnotify watcher, and the admin HTTP reload
// endpoint, and only one of them may compute writeIdx and assign
// snapshots[writeIdx] at a time. Readers (Contains, Len) don't take writeMu
// and remain wait-free.
func (f *Filter) reload() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	r, err := f.source(f.path)
	if err != nil {
		logger.Error("filter: unable to open filter file, keeping previous snapshot",
			logger.Source(f.path), logger.Err(err))
		f.metrics.FilterReload("error")
		return
	}
	defer r.Close()

	next := make([]uint64, 0, f.Len())
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		match := digitsRe.FindString(line)
		if match == "" {
			continue
		}
		v, err := strconv.ParseUint(match, 10, 64)
		if err != nil {
			logger.Warn("filter: skipping unparseable line", logger.Source(f.path), logger.Err(err))
			continue
		}
		next = append(next, v)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("filter: error scanning filter file, keeping previous snapshot",
			logger.Source(f.path), logger.Err(err))
		f.metrics.FilterReload("error")
		return
	}

	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })

	writeIdx := 1 - f.current.Load()
	f.snapshots[writeIdx] = next
	f.current.Store(writeIdx)

	f.metrics.FilterReload("ok")
	f.metrics.SetFilterSize(len(next))

	logger.Info("filter: reloaded", logger.Source(f.path), logger.FilterLen(len(next)))
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
