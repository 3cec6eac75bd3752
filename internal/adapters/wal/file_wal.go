package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// record layout: [8 bytes id][4 bytes len][len bytes json]
const (
	recordHeaderLen = 12
	maxRecordLen    = 1 << 20
)

// FileWAL persists step readings until the window has consumed them, so an
// unclean restart can replay what was still in flight. Every Append reaches
// the file before it returns; with sync set it is also fsynced.
type FileWAL struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.WALEntryID
	committed ports.WALEntryID
	sizeBytes int64
	sync      bool
}

// Option tunes a FileWAL.
type Option func(*FileWAL)

// WithSync fsyncs the log after every append.
func WithSync(on bool) Option {
	return func(w *FileWAL) { w.sync = on }
}

func NewFileWAL(dir string, opts ...Option) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &FileWAL{
		path:     filepath.Join(dir, "steps.wal"),
		metaPath: filepath.Join(dir, "steps.wal.meta"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	if err := w.bootstrap(); err != nil {
		_ = w.file.Close()
		return nil, err
	}
	return w, nil
}

func (w *FileWAL) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 64<<10)
	return nil
}

func (w *FileWAL) bootstrap() error {
	if err := w.scanExisting(); err != nil {
		return err
	}
	if err := w.loadCommitted(); err != nil {
		return err
	}
	if w.nextID < w.committed {
		w.nextID = w.committed
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting finds the last complete record and cuts off a torn tail.
func (w *FileWAL) scanExisting() error {
	rf, err := os.Open(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer rf.Close()

	var (
		offset int64
		lastID ports.WALEntryID
	)
	err = readRecords(bufio.NewReader(rf), func(id ports.WALEntryID, body []byte) error {
		offset += recordHeaderLen + int64(len(body))
		lastID = id
		return nil
	})
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("wal scan: %w", err)
	}

	if err := w.file.Truncate(offset); err != nil {
		return err
	}
	w.sizeBytes = offset
	w.nextID = lastID
	return nil
}

func (w *FileWAL) loadCommitted() error {
	data, err := os.ReadFile(w.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal meta parse: %w", err)
	}
	w.committed = ports.WALEntryID(u)
	return nil
}

func (w *FileWAL) Append(s *domain.StepSample) (ports.WALEntryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}

	id := w.nextID + 1
	if err := writeRecord(w.writer, id, b); err != nil {
		return 0, err
	}
	if err := w.writer.Flush(); err != nil {
		return 0, err
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return 0, err
		}
	}

	w.nextID = id
	w.sizeBytes += int64(recordHeaderLen + len(b))
	return id, nil
}

func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, s *domain.StepSample) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = readRecords(bufio.NewReader(f), func(id ports.WALEntryID, body []byte) error {
		if id < from {
			return nil
		}
		var s domain.StepSample
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("corrupt WAL entry %d: %w", id, err)
		}
		return fn(id, &s)
	})
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("corrupt WAL: %w", err)
	}
	return err
}

// Commit marks every entry up to and including upto as consumed and flushes
// buffered records to disk.
func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if upto > w.committed {
		w.committed = upto
	}
	return w.persistMetaLocked()
}

// TruncateCommitted rewrites the log keeping only uncommitted records.
func (w *FileWAL) TruncateCommitted() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.committed == 0 {
		return nil
	}

	src, err := os.Open(w.path)
	if err != nil {
		return err
	}
	tmpPath := w.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		src.Close()
		return err
	}

	var kept int64
	bw := bufio.NewWriter(tmp)
	err = readRecords(bufio.NewReader(src), func(id ports.WALEntryID, body []byte) error {
		if id <= w.committed {
			return nil
		}
		kept += recordHeaderLen + int64(len(body))
		return writeRecord(bw, id, body)
	})
	src.Close()
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("wal truncate: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}
	w.sizeBytes = kept
	return nil
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.nextID,
		SizeBytes:         w.sizeBytes,
	}
}

// Close flushes pending records and releases the file.
func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.writer.Flush(), w.file.Close())
}

func (w *FileWAL) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", w.committed))
	return os.WriteFile(w.metaPath, data, 0o644)
}

func writeRecord(wr io.Writer, id ports.WALEntryID, body []byte) error {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
	if _, err := wr.Write(hdr[:]); err != nil {
		return err
	}
	_, err := wr.Write(body)
	return err
}

// readRecords calls fn for every complete record. A torn trailing record
// yields io.ErrUnexpectedEOF after all complete records were visited.
func readRecords(r io.Reader, fn func(id ports.WALEntryID, body []byte) error) error {
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		id := ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		n := binary.BigEndian.Uint32(hdr[8:12])
		if n > maxRecordLen {
			return io.ErrUnexpectedEOF
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
}

var _ ports.WAL = (*FileWAL)(nil)
