package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"elevgrid/internal/heightfield"
)

const diskOpSet byte = 1

// diskRecord is the persisted form of a cache entry.
type diskRecord struct {
	W, H     int
	Heights  []float32
	OriginX  float64
	OriginY  float64
	DX, DY   float64
	Modified int64
}

type diskRecordMeta struct {
	offset int64
	size   uint32
}

// DiskTier persists grids in a single append-only record file. Each write
// appends a header (op, key length, payload length), the key bytes, and a
// gob-encoded payload; an in-memory index maps keys to the latest record.
// Rewritten keys simply shadow earlier records.
type DiskTier struct {
	file    *os.File
	mu      sync.RWMutex
	records map[string]diskRecordMeta
}

// NewDiskTier opens (or creates) the cache file at path, creating parent
// directories as needed, and rebuilds the index from existing records.
func NewDiskTier(path string) (*DiskTier, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	t := &DiskTier{
		file:    f,
		records: make(map[string]diskRecordMeta),
	}
	if err := t.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *DiskTier) loadIndex() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind cache file: %w", err)
	}

	header := make([]byte, 7)
	var offset int64
	for {
		if _, err := io.ReadFull(t.file, header); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("truncated cache header: %w", err)
			}
			return fmt.Errorf("read cache header: %w", err)
		}
		keyLen := int(binary.LittleEndian.Uint16(header[1:3]))
		size := binary.LittleEndian.Uint32(header[3:7])

		key := make([]byte, keyLen)
		if _, err := io.ReadFull(t.file, key); err != nil {
			return fmt.Errorf("read cache key: %w", err)
		}
		recordOffset := offset
		offset += int64(len(header)) + int64(keyLen) + int64(size)

		if _, err := t.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if header[0] == diskOpSet {
			t.records[string(key)] = diskRecordMeta{offset: recordOffset, size: size}
		}
	}
	return nil
}

func (t *DiskTier) Read(key string) (Entry, bool, error) {
	t.mu.RLock()
	meta, ok := t.records[key]
	t.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	payload := make([]byte, meta.size)
	payloadOffset := meta.offset + 7 + int64(len(key))
	if _, err := t.file.ReadAt(payload, payloadOffset); err != nil {
		return Entry{}, false, fmt.Errorf("read cache payload: %w", err)
	}

	var rec diskRecord
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&rec); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache record: %w", err)
	}

	g := &heightfield.Grid{
		W:       rec.W,
		H:       rec.H,
		Heights: rec.Heights,
		OriginX: rec.OriginX,
		OriginY: rec.OriginY,
		DX:      rec.DX,
		DY:      rec.DY,
	}
	return Entry{Grid: g, LastModified: time.Unix(0, rec.Modified)}, true, nil
}

func (t *DiskTier) Write(key string, g *heightfield.Grid, modified time.Time) error {
	rec := diskRecord{
		W:        g.W,
		H:        g.H,
		Heights:  g.Heights,
		OriginX:  g.OriginX,
		OriginY:  g.OriginY,
		DX:       g.DX,
		DY:       g.DY,
		Modified: modified.UnixNano(),
	}
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&rec); err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	header := make([]byte, 7)
	header[0] = diskOpSet
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(key)))
	binary.LittleEndian.PutUint32(header[3:7], uint32(payload.Len()))

	t.mu.Lock()
	defer t.mu.Unlock()

	offset, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek cache end: %w", err)
	}
	if _, err := t.file.Write(header); err != nil {
		return fmt.Errorf("write cache header: %w", err)
	}
	if _, err := t.file.Write([]byte(key)); err != nil {
		return fmt.Errorf("write cache key: %w", err)
	}
	if _, err := t.file.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write cache payload: %w", err)
	}
	if err := t.file.Sync(); err != nil {
		return fmt.Errorf("sync cache file: %w", err)
	}
	t.records[key] = diskRecordMeta{offset: offset, size: uint32(payload.Len())}
	return nil
}

// Close releases the underlying file.
func (t *DiskTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
