package data

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"katsuo-market/internal/model"
)

const DefaultDataPath = "./data/katsuo_market_data.json"

// WriteFileAtomic writes path through a temp file in the same directory and
// renames it into place, so readers see either the old or the new file.
// On failure the temp file is removed and the error matches ErrPersistence.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistenceErr("create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return persistenceErr("create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return persistenceErr("encode", err)
	}
	if err := bw.Flush(); err != nil {
		return persistenceErr("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return persistenceErr("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return persistenceErr("close", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return persistenceErr("chmod", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return persistenceErr("rename", err)
	}
	return nil
}

// WriteJSON atomically writes v as indented UTF-8 JSON without HTML escaping.
func WriteJSON(path string, v any) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// WriteDataset persists the full dataset to path.
func WriteDataset(path string, ds model.Dataset) error {
	if ds == nil {
		ds = model.Dataset{}
	}
	return WriteJSON(path, ds)
}

// GetDefaultDataPath returns the dataset path from KATSUO_DATA_FILE, or the
// default under ./data.
func GetDefaultDataPath() string {
	if path := os.Getenv("KATSUO_DATA_FILE"); path != "" {
		return path
	}
	return DefaultDataPath
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
