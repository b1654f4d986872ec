package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// FileStore persists each bill as one JSON file under a data directory.
// Saves go through a temp-file-then-rename sequence so an interrupted write
// never corrupts the previous document state.
type FileStore struct {
	dir string
}

// NewFile creates a FileStore rooted at dir, creating it if needed.
func NewFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, eris.New("file store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "file store: create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", eris.Errorf("file store: invalid bill id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FileStore) LoadBill(ctx context.Context, id string) (*model.Bill, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "file store: read %s", id)
	}

	var bill model.Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, eris.Wrapf(err, "file store: unmarshal %s", id)
	}
	return &bill, nil
}

func (s *FileStore) SaveBill(ctx context.Context, bill *model.Bill) error {
	path, err := s.path(bill.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(bill, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "file store: marshal %s", bill.ID)
	}

	// Write to a temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(s.dir, bill.ID+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "file store: create temp for %s", bill.ID)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrapf(err, "file store: write temp for %s", bill.ID)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrapf(err, "file store: sync temp for %s", bill.ID)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "file store: close temp for %s", bill.ID)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "file store: rename temp for %s", bill.ID)
	}
	return nil
}

func (s *FileStore) ListBills(ctx context.Context) ([]BillInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "file store: read dir %s", s.dir)
	}

	var infos []BillInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")

		bill, err := s.LoadBill(ctx, id)
		if err != nil {
			return nil, err
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "file store: stat %s", name)
		}
		infos = append(infos, BillInfo{
			ID:        id,
			Title:     bill.Title,
			Sections:  len(bill.Sections),
			UpdatedAt: fi.ModTime().UTC(),
		})
	}
	return infos, nil
}

func (s *FileStore) DeleteBill(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return eris.Wrapf(err, "file store: delete %s", id)
}

func (s *FileStore) Migrate(ctx context.Context) error {
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
