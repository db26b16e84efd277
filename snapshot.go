package polyvectordb

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/macneib/PolyVectorDB/registry"
)

// snapshotMagic guards against feeding arbitrary files to LoadSnapshot.
const snapshotMagic = "PVDB1"

// snapshotHeader precedes the index payload inside the compressed stream.
type snapshotHeader struct {
	Magic  string
	Name   string
	Config registry.Config
}

// SaveSnapshot writes one field's index to w as an s2-compressed stream.
// Concurrent writers to the field are excluded by the index's own
// serialization while it encodes.
func (db *DB) SaveSnapshot(ctx context.Context, field string, w io.Writer) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return translateError(err)
	}

	f, err := db.registry.Get(field)
	if err != nil {
		return translateError(err)
	}

	payload, err := f.Index.GobEncode()
	if err != nil {
		return fmt.Errorf("snapshot %q: %w", field, err)
	}

	zw := s2.NewWriter(w)
	enc := gob.NewEncoder(zw)

	header := snapshotHeader{Magic: snapshotMagic, Name: f.Name, Config: f.Config}
	if err := enc.Encode(header); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot %q: encode header: %w", field, err)
	}
	if err := enc.Encode(payload); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot %q: encode payload: %w", field, err)
	}
	return zw.Close()
}

// LoadSnapshot restores a field from a stream written by SaveSnapshot and
// registers it under its recorded name. The field must not already exist.
// It returns the restored field's name.
func (db *DB) LoadSnapshot(ctx context.Context, r io.Reader) (string, error) {
	if db.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", translateError(err)
	}

	dec := gob.NewDecoder(s2.NewReader(r))

	var header snapshotHeader
	if err := dec.Decode(&header); err != nil {
		return "", fmt.Errorf("snapshot: decode header: %w", err)
	}
	if header.Magic != snapshotMagic {
		return "", fmt.Errorf("snapshot: bad magic %q", header.Magic)
	}

	var payload []byte
	if err := dec.Decode(&payload); err != nil {
		return "", fmt.Errorf("snapshot %q: decode payload: %w", header.Name, err)
	}

	f, err := db.registry.Create(header.Name, header.Config)
	if err != nil {
		return "", translateError(err)
	}
	if err := f.Index.GobDecode(payload); err != nil {
		_ = db.registry.Drop(header.Name)
		return "", fmt.Errorf("snapshot %q: restore index: %w", header.Name, err)
	}

	db.opts.logger.LogSnapshot(ctx, header.Name, "", nil)
	return header.Name, nil
}

// SaveSnapshotFile is a convenience wrapper writing a snapshot to a file.
func (db *DB) SaveSnapshotFile(ctx context.Context, field, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	err = db.SaveSnapshot(ctx, field, file)
	db.opts.logger.LogSnapshot(ctx, field, filename, err)

	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// LoadSnapshotFile is a convenience wrapper restoring a snapshot from a
// file.
func (db *DB) LoadSnapshotFile(ctx context.Context, filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return db.LoadSnapshot(ctx, file)
}
