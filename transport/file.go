package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/testharness/orchestrator/message"
)

const (
	messageFileSuffix = ".json"
	claimedFileSuffix = ".claimed"
	tempFileSuffix    = ".tmp"

	// Scan anyway this often, in case a filesystem event was missed.
	fileRescanInterval = 500 * time.Millisecond
)

// FileEndpoint uses a directory as a queue. Send writes each message as a JSON file whose
// name sorts after earlier ones, using a rename so that a reader never sees a partial file.
// Receive takes the first file in name order, claiming it by renaming it first, and waits
// for filesystem notifications when the directory is empty.
type FileEndpoint struct {
	name    string
	dir     string
	watcher *fsnotify.Watcher
	counter atomic.Uint64
	closing sync.Once
}

// NewFileEndpoint creates an endpoint for a directory, creating the directory if needed.
func NewFileEndpoint(name, dir string) (*FileEndpoint, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("could not watch %s: %w", dir, err)
	}
	return &FileEndpoint{name: name, dir: dir, watcher: watcher}, nil
}

func (e *FileEndpoint) Send(_ context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	base := fmt.Sprintf("%020d-%06d", time.Now().UnixNano(), e.counter.Add(1)%1000000)
	temp := filepath.Join(e.dir, base+tempFileSuffix)
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, filepath.Join(e.dir, base+messageFileSuffix))
}

func (e *FileEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	rescan := time.NewTicker(fileRescanInterval)
	defer rescan.Stop()
	for {
		msg, ok, err := e.tryClaim()
		if err != nil || ok {
			return msg, err
		}
		select {
		case event, ok := <-e.watcher.Events:
			if !ok {
				return message.Message{}, errEndpointClosed
			}
			_ = event // any change is a reason to scan again
		case err := <-e.watcher.Errors:
			if err != nil {
				return message.Message{}, err
			}
		case <-rescan.C:
		case <-deadline.C:
			return message.Message{}, timeoutError("file endpoint "+e.name, timeout)
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	}
}

func (e *FileEndpoint) tryClaim() (message.Message, bool, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return message.Message{}, false, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), messageFileSuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(e.dir, name)
		claimed := path + claimedFileSuffix
		if err := os.Rename(path, claimed); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // another receiver got it first
			}
			return message.Message{}, false, err
		}
		data, err := os.ReadFile(claimed)
		_ = os.Remove(claimed)
		if err != nil {
			return message.Message{}, false, err
		}
		msg, err := decodeMessage(data)
		return msg, err == nil, err
	}
	return message.Message{}, false, nil
}

func (e *FileEndpoint) Close() error {
	var err error
	e.closing.Do(func() { err = e.watcher.Close() })
	return err
}
