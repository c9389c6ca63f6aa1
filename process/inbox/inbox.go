// Package inbox attaches receipt images dropped into a directory. A file
// named "<penerimaanID>_anything.jpg" is linked to that penerimaan; any other
// image is stored unlinked for manual review.
package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"bezis/models"
	"bezis/pkg/ledger"
	"bezis/pkg/receipt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var linkedRE = regexp.MustCompile(`^(\d+)_`)

// Inbox processes the images of one directory.
type Inbox struct {
	dir        string
	store      *receipt.Store
	log        *zap.Logger
	workers    int
	uploadedBy uint
	settle     time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
}

type Options struct {
	Dir        string
	Workers    int
	UploadedBy uint
	// Settle is how long a file must stay quiet before it is picked up.
	Settle time.Duration
}

func New(store *receipt.Store, log *zap.Logger, opts Options) *Inbox {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Settle <= 0 {
		opts.Settle = 300 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{
		dir:        opts.Dir,
		store:      store,
		log:        log,
		workers:    opts.Workers,
		uploadedBy: opts.UploadedBy,
		settle:     opts.Settle,
		seen:       make(map[string]struct{}, 1024),
	}
}

// Preload marks every receipt already stored so it is skipped.
func (in *Inbox) Preload(ctx context.Context, db *gorm.DB) error {
	var names []string
	if err := db.WithContext(ctx).Model(&models.Receipt{}).Pluck("file_name", &names).Error; err != nil {
		return err
	}
	in.mu.Lock()
	for _, n := range names {
		in.seen[n] = struct{}{}
	}
	in.mu.Unlock()
	return nil
}

// PenerimaanID extracts the linked penerimaan from a file name.
func PenerimaanID(name string) *uint {
	m := linkedRE.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return nil
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	v := uint(id)
	return &v
}

// Scan processes every image currently in the directory and waits for the
// pool to drain.
func (in *Inbox) Scan(ctx context.Context) error {
	files, err := in.list()
	if err != nil {
		return err
	}
	in.log.Info("scanning inbox", zap.String("dir", in.dir), zap.Int("files", len(files)), zap.Int("workers", in.workers))
	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	close(ch)
	in.run(ctx, ch)
	return nil
}

// Watch processes files as they are created until ctx is done.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(in.dir); err != nil {
		return err
	}
	in.log.Info("watching inbox", zap.String("dir", in.dir))

	files := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		in.run(ctx, files)
		close(done)
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(tickInterval(in.settle))
	defer ticker.Stop()
	defer func() {
		close(files)
		<-done
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if receipt.Supported(name) {
				pending[name] = time.Now()
			}
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) >= in.settle {
					delete(pending, name)
					select {
					case files <- name:
					case <-ctx.Done():
						return nil
					}
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("watch error", zap.Error(err))
		}
	}
}

// tickInterval is how often pending files are checked for having settled.
func tickInterval(settle time.Duration) time.Duration {
	if d := settle / 2; d >= 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

func (in *Inbox) run(ctx context.Context, files <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < in.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range files {
				if ctx.Err() != nil {
					continue
				}
				in.Process(ctx, name)
			}
		}()
	}
	wg.Wait()
}

// Process attaches one file and removes it from the inbox once stored. It
// reports whether the file was stored.
func (in *Inbox) Process(ctx context.Context, name string) bool {
	if !in.claim(name) {
		in.log.Debug("skip known receipt", zap.String("file", name))
		return false
	}
	path := filepath.Join(in.dir, name)
	pid := PenerimaanID(name)
	got, err := in.store.Attach(ctx, path, name, pid, in.uploadedBy)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrConflict):
			in.log.Debug("receipt already stored", zap.String("file", name))
			return false
		case errors.Is(err, ledger.ErrNotFound):
			// Unknown penerimaan: keep the image, unlinked.
			in.log.Warn("penerimaan not found, storing unlinked", zap.String("file", name), zap.Uintp("penerimaan_id", pid))
			got, err = in.store.Attach(ctx, path, name, nil, in.uploadedBy)
		}
	}
	if err != nil {
		in.release(name)
		in.log.Error("attach receipt", zap.String("file", name), zap.Error(err))
		return false
	}
	if err := os.Remove(path); err != nil {
		in.log.Warn("remove processed file", zap.String("file", name), zap.Error(err))
	}
	if got.Matches != nil && !*got.Matches {
		in.log.Warn("receipt amount differs from penerimaan",
			zap.String("file", name),
			zap.Stringer("ocr_amount", got.Receipt.SuggestedAmount.Decimal),
		)
	}
	return true
}

func (in *Inbox) claim(name string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.seen[name]; ok {
		return false
	}
	in.seen[name] = struct{}{}
	return true
}

func (in *Inbox) release(name string) {
	in.mu.Lock()
	delete(in.seen, name)
	in.mu.Unlock()
}

func (in *Inbox) list() ([]string, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !receipt.Supported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
