package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

const (
	FileName        = "injections.wal"
	recordHeaderLen = 12
	maxRecordLen    = 16 << 20
)

var ErrCorrupt = errors.New("journal: corrupt entry")

// FileJournal appends one snappy-compressed JSON frame per injection.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.JournalEntryID
	sizeBytes int64
	closed    bool
}

// Open creates dir if needed and opens (or resumes) the journal inside it.
// A partially written trailing frame is cut off.
func Open(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	j := &FileJournal{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 64<<10),
	}
	if err := j.scanExisting(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) scanExisting() error {
	var (
		offset int64
		lastID ports.JournalEntryID
	)
	r := bufio.NewReader(io.NewSectionReader(j.file, 0, 1<<62))
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])
		if length > maxRecordLen || id != lastID+1 {
			break
		}
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	j.nextID = lastID
	return nil
}

func (j *FileJournal) Append(ev domain.InjectionEvent) (ports.JournalEntryID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, os.ErrClosed
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	b = snappy.Encode(nil, b)

	// [8 bytes id][4 bytes len][len bytes snappy(json)]
	id := j.nextID + 1
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}
	j.nextID = id
	j.sizeBytes += int64(len(hdr) + len(b))
	return id, nil
}

// Iterate calls fn for every entry with id >= from, in append order.
func (j *FileJournal) Iterate(from ports.JournalEntryID, fn func(id ports.JournalEntryID, ev domain.InjectionEvent) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.closed {
		if err := j.writer.Flush(); err != nil {
			return err
		}
	}

	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(io.LimitReader(f, j.sizeBytes))

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		b := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorrupt, id, err)
		}
		if id < from {
			continue
		}

		raw, err := snappy.Decode(nil, b)
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorrupt, id, err)
		}
		var ev domain.InjectionEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorrupt, id, err)
		}
		if err := fn(id, ev); err != nil {
			return err
		}
	}
}

// Sync flushes buffered frames and fsyncs the file.
func (j *FileJournal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Sync()
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{
		LatestAppended: j.nextID,
		SizeBytes:      j.sizeBytes,
	}
}

func (j *FileJournal) Path() string { return j.path }

// Close syncs and closes the file. Safe to call more than once.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	err := j.writer.Flush()
	if serr := j.file.Sync(); err == nil {
		err = serr
	}
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ ports.InjectionJournal = (*FileJournal)(nil)
