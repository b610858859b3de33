package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// File keeps puzzles and snapshots as YAML documents under a save directory:
//
//	<dir>/puzzles/<lang>.yaml
//	<dir>/snapshots/<key>.yaml
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	for _, sub := range []string{"puzzles", "snapshots"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating save dir: %w", err)
		}
	}
	return &File{dir: dir}, nil
}

type puzzleFile struct {
	Puzzles []models.Puzzle `yaml:"puzzles"`
}

func (f *File) puzzlePath(lang models.Language) string {
	return filepath.Join(f.dir, "puzzles", string(lang)+".yaml")
}

func (f *File) snapshotPath(key string) string {
	name := strings.NewReplacer(":", "--", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(f.dir, "snapshots", name+".yaml")
}

func (f *File) readPuzzles(lang models.Language) ([]models.Puzzle, error) {
	data, err := os.ReadFile(f.puzzlePath(lang))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pf puzzleFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s puzzles: %w", lang, err)
	}
	return pf.Puzzles, nil
}

func (f *File) writePuzzles(lang models.Language, ps []models.Puzzle) error {
	data, err := yaml.Marshal(puzzleFile{Puzzles: ps})
	if err != nil {
		return err
	}
	return atomicWriteFile(f.puzzlePath(lang), data, 0644)
}

func (f *File) List(_ context.Context, lang models.Language) ([]models.Puzzle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, err := f.readPuzzles(lang)
	if err != nil {
		return nil, err
	}
	sortPuzzles(ps)
	return ps, nil
}

func (f *File) Get(_ context.Context, lang models.Language, id string) (models.Puzzle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, err := f.readPuzzles(lang)
	if err != nil {
		return models.Puzzle{}, err
	}
	for _, p := range ps {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Puzzle{}, ErrNotFound
}

func (f *File) Upsert(_ context.Context, lang models.Language, p models.Puzzle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, err := f.readPuzzles(lang)
	if err != nil {
		return err
	}
	p.Language = lang
	replaced := false
	for i := range ps {
		if ps[i].ID == p.ID {
			ps[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		ps = append(ps, p)
	}
	return f.writePuzzles(lang, ps)
}

func (f *File) Delete(_ context.Context, lang models.Language, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, err := f.readPuzzles(lang)
	if err != nil {
		return err
	}
	for i := range ps {
		if ps[i].ID == id {
			return f.writePuzzles(lang, append(ps[:i], ps[i+1:]...))
		}
	}
	return ErrNotFound
}

func (f *File) Load(_ context.Context, key string) (models.Snapshot, error) {
	data, err := os.ReadFile(f.snapshotPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return models.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, err
	}
	var snap models.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("parsing snapshot %s: %w", key, err)
	}
	return snap, nil
}

func (f *File) Save(_ context.Context, key string, snap models.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return atomicWriteFile(f.snapshotPath(key), data, 0644)
}

func (f *File) Clear(_ context.Context, key string) error {
	err := os.Remove(f.snapshotPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanupTmp := true
	defer func() {
		_ = tmp.Close()
		if cleanupTmp {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	cleanupTmp = false

	if runtime.GOOS != "windows" {
		if d, err := os.Open(dir); err == nil {
			_ = d.Sync()
			d.Close()
		}
	}
	return nil
}
