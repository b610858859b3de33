package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// Memory implements PuzzleStore and SnapshotStore in process memory.
type Memory struct {
	mu        sync.RWMutex
	puzzles   map[models.Language]map[string]models.Puzzle
	snapshots map[string]models.Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		puzzles:   make(map[models.Language]map[string]models.Puzzle),
		snapshots: make(map[string]models.Snapshot),
	}
}

func (m *Memory) List(_ context.Context, lang models.Language) ([]models.Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Puzzle, 0, len(m.puzzles[lang]))
	for _, p := range m.puzzles[lang] {
		out = append(out, p)
	}
	sortPuzzles(out)
	return out, nil
}

func (m *Memory) Get(_ context.Context, lang models.Language, id string) (models.Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.puzzles[lang][id]
	if !ok {
		return models.Puzzle{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) Upsert(_ context.Context, lang models.Language, p models.Puzzle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.puzzles[lang] == nil {
		m.puzzles[lang] = make(map[string]models.Puzzle)
	}
	p.Language = lang
	m.puzzles[lang][p.ID] = p
	return nil
}

func (m *Memory) Delete(_ context.Context, lang models.Language, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.puzzles[lang][id]; !ok {
		return ErrNotFound
	}
	delete(m.puzzles[lang], id)
	return nil
}

func (m *Memory) Load(_ context.Context, key string) (models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[key]
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	return snap.Clone(), nil
}

func (m *Memory) Save(_ context.Context, key string, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = snap.Clone()
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, key)
	return nil
}

// sortPuzzles orders newest first, then by ID for stable output.
func sortPuzzles(ps []models.Puzzle) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
