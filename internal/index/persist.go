package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Persisted index artifacts: three co-located files loaded together at
// startup. Any file missing means "empty index, reindex required".
const (
	vectorsFile = "index.bin" // dim + count header, little-endian float32 table
	metaFile    = "meta.json" // metadata rows parallel to vector positions
	docsFile    = "docs.json" // raw document texts parallel to vector positions
)

// Save writes the snapshot artifacts into dir, creating it if needed.
// Files are written to temp names and renamed so a crash mid-write never
// leaves a readable half-state.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, vectorsFile), encodeVectors(s.dim, s.vectors)); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	metas := make([]domain.DocumentMeta, len(s.metas))
	texts := make([]string, len(s.metas))
	for i, m := range s.metas {
		texts[i] = m.Content
		m.Content = ""
		metas[i] = m
	}

	metaData, err := json.Marshal(metas)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, metaFile), metaData); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	docsData, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, docsFile), docsData); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}

	return nil
}

// Load reads the snapshot artifacts from dir. Returns (nil, nil) when any of
// the three files is absent: callers treat that as an empty index.
func Load(dir string) (*Snapshot, error) {
	vecData, err := os.ReadFile(filepath.Clean(filepath.Join(dir, vectorsFile)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	metaData, err := os.ReadFile(filepath.Clean(filepath.Join(dir, metaFile)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	docsData, err := os.ReadFile(filepath.Clean(filepath.Join(dir, docsFile)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	dim, vectors, err := decodeVectors(vecData)
	if err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}

	var metas []domain.DocumentMeta
	if err := json.Unmarshal(metaData, &metas); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	var texts []string
	if err := json.Unmarshal(docsData, &texts); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}
	if len(texts) != len(metas) {
		return nil, fmt.Errorf("documents (%d) and metadata (%d) length mismatch", len(texts), len(metas))
	}
	for i := range metas {
		metas[i].Content = texts[i]
	}

	return Build(dim, vectors, metas)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func encodeVectors(dim int, vectors [][]float32) []byte {
	buf := make([]byte, 8+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(dim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(vectors)))
	off := 8
	for _, v := range vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

func decodeVectors(data []byte) (int, [][]float32, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("vector file truncated: %d bytes", len(data))
	}
	dim := int(binary.LittleEndian.Uint32(data[0:]))
	count := int(binary.LittleEndian.Uint32(data[4:]))
	if dim <= 0 {
		return 0, nil, fmt.Errorf("invalid dimension %d", dim)
	}
	want := 8 + count*dim*4
	if len(data) != want {
		return 0, nil, fmt.Errorf("vector file size %d, want %d", len(data), want)
	}

	vectors := make([][]float32, count)
	off := 8
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}
