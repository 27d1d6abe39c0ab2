package listener

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

// spoolDebounce lets a writer finish a file before it is read.
const spoolDebounce = 100 * time.Millisecond

// Spool feeds the queue from *.json files dropped into a directory. Each
// file holds one event and is removed once queued. Files that cannot be
// decoded are renamed with a .bad suffix.
type Spool struct {
	dir     string
	queue   *Queue
	watcher *fsnotify.Watcher
}

// NewSpool watches dir, creating it if needed.
func NewSpool(dir string, q *Queue) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "spool: create dir")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "spool: create watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "spool: watch %s", dir)
	}
	return &Spool{dir: dir, queue: q, watcher: fw}, nil
}

// Run drains files already present, then ingests new ones until ctx is
// done. It closes the watcher on return.
func (s *Spool) Run(ctx context.Context) {
	defer s.watcher.Close() //nolint:errcheck
	log := zap.L().With(zap.String("component", "spool"), zap.String("dir", s.dir))

	s.drainExisting(log)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(spoolDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isEventFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= spoolDebounce {
					s.ingest(log, file)
					delete(pending, file)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("spool: watch error", zap.Error(err))
		}
	}
}

func (s *Spool) drainExisting(log *zap.Logger) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn("spool: read dir", zap.Error(err))
		return
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isEventFile(e.Name()) {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		s.ingest(log, f)
	}
}

// ingest queues the event in file. A full queue leaves the file in place
// for the next restart.
func (s *Spool) ingest(log *zap.Logger, file string) {
	ev, err := readEventFile(file)
	if os.IsNotExist(eris.Cause(err)) {
		return
	}
	if err != nil {
		log.Warn("spool: bad event file", zap.String("file", file), zap.Error(err))
		if rerr := os.Rename(file, file+".bad"); rerr != nil {
			log.Warn("spool: quarantine failed", zap.String("file", file), zap.Error(rerr))
		}
		return
	}
	if _, err := s.queue.Enqueue(ev); err != nil {
		if eris.Is(err, ErrQueueFull) {
			log.Warn("spool: queue full, leaving file", zap.String("file", file))
			return
		}
		log.Warn("spool: rejected event", zap.String("file", file), zap.Error(err))
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		log.Warn("spool: remove file", zap.String("file", file), zap.Error(err))
	}
}

func readEventFile(file string) (model.Event, error) {
	f, err := os.Open(file)
	if err != nil {
		return model.Event{}, err
	}
	defer f.Close() //nolint:errcheck
	ev, err := fetcher.DecodeJSONObject[model.Event](f)
	if err != nil {
		return model.Event{}, err
	}
	return *ev, nil
}

func isEventFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
