// Package registry persists named transformation matrices with usage
// statistics and matches them against new CSV files by column overlap.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/allfeat/massload/engine/core"
	"github.com/allfeat/massload/engine/transform"
	"github.com/allfeat/massload/pkg/logger"
)

// DefaultDir is the registry location relative to the working directory.
const DefaultDir = ".massload/matrices"

// Candidates need more than half of their stored columns present to be
// worth trying.
const compatibilityThreshold = 0.5

// StoredMatrix is one persisted template: the matrix itself plus the
// columns it was built for and its usage statistics.
type StoredMatrix struct {
	ID          string                          `json:"id"`
	Name        string                          `json:"name"`
	Matrix      *transform.TransformationMatrix `json:"matrix"`
	CsvColumns  []string                        `json:"csv_columns"`
	CreatedAt   time.Time                       `json:"created_at"`
	LastUsed    *time.Time                      `json:"last_used,omitempty"`
	SuccessRate float64                         `json:"success_rate"`
	UseCount    int                             `json:"use_count"`
}

// Candidate pairs a stored matrix with its compatibility score for a
// specific header set.
type Candidate struct {
	Stored *StoredMatrix
	Score  float64
}

// Registry owns the in-memory template map and its backing directory.
// All access is serialized through the mutex; persistence happens under
// the lock so stats updates cannot interleave.
type Registry struct {
	mu       sync.RWMutex
	dir      string
	matrices map[string]*StoredMatrix
}

// New loads every template from dir into memory. Corrupt files are
// skipped, not fatal. A missing directory is an empty registry.
func New(ctx context.Context, dir string) *Registry {
	if dir == "" {
		dir = DefaultDir
	}
	r := &Registry{dir: dir, matrices: make(map[string]*StoredMatrix)}
	r.loadAll(ctx)
	return r
}

func (r *Registry) loadAll(ctx context.Context) {
	log := logger.FromContext(ctx)
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable template file", "path", path, "error", err)
			continue
		}
		var stored StoredMatrix
		if err := json.Unmarshal(data, &stored); err != nil {
			log.Warn("skipping corrupt template file", "path", path, "error", err)
			continue
		}
		r.matrices[stored.ID] = &stored
	}
	log.Debug("registry loaded", "dir", r.dir, "templates", len(r.matrices))
}

// List returns every stored template, sorted by id for stable output.
func (r *Registry) List() []*StoredMatrix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StoredMatrix, 0, len(r.matrices))
	for _, m := range r.matrices {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a template by id.
func (r *Registry) Get(id string) (*StoredMatrix, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matrices[id]
	return m, ok
}

// FindCompatible scores every template against the CSV headers and
// returns those above the threshold, best first. Ranking is score times
// success rate, with recency, use count and id breaking ties.
func (r *Registry) FindCompatible(csvColumns []string) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []Candidate
	for _, m := range r.matrices {
		score := compatibility(m.CsvColumns, csvColumns)
		if score > compatibilityThreshold {
			candidates = append(candidates, Candidate{Stored: m, Score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ra := a.Score * a.Stored.SuccessRate
		rb := b.Score * b.Stored.SuccessRate
		if ra != rb {
			return ra > rb
		}
		if !equalTimes(a.Stored.LastUsed, b.Stored.LastUsed) {
			return laterTime(a.Stored.LastUsed, b.Stored.LastUsed)
		}
		if a.Stored.UseCount != b.Stored.UseCount {
			return a.Stored.UseCount > b.Stored.UseCount
		}
		return a.Stored.ID < b.Stored.ID
	})
	return candidates
}

// compatibility is the case-insensitive fraction of stored columns found
// in the CSV headers. A template with no recorded columns never matches.
func compatibility(stored, csv []string) float64 {
	if len(stored) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(csv))
	for _, c := range csv {
		present[strings.ToLower(c)] = struct{}{}
	}
	matches := 0
	for _, col := range stored {
		if _, ok := present[strings.ToLower(col)]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(stored))
}

// Save persists a new template and returns its generated id. A fresh
// template starts at success rate 1.0 so it ranks ahead of templates
// that have already failed.
func (r *Registry) Save(
	matrix *transform.TransformationMatrix,
	name string,
	csvColumns []string,
) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", core.NewError(err, "REGISTRY_WRITE_ERROR", map[string]any{"dir": r.dir})
	}
	now := time.Now().UTC()
	stored := &StoredMatrix{
		ID:          fmt.Sprintf("%s-%d", slug.Make(name), now.UnixMilli()),
		Name:        name,
		Matrix:      matrix,
		CsvColumns:  csvColumns,
		CreatedAt:   now,
		SuccessRate: 1.0,
	}
	if err := r.persist(stored); err != nil {
		return "", err
	}
	r.matrices[stored.ID] = stored
	return stored.ID, nil
}

// Import reads a bare matrix JSON file and stores it as a template named
// after the file (or the explicit name). The template's columns are the
// single-source columns of its transforms.
func (r *Registry) Import(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.NewError(err, "REGISTRY_READ_ERROR", map[string]any{"path": path})
	}
	matrix, err := transform.MatrixFromJSON(data)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	var columns []string
	for _, t := range matrix.Transforms {
		if t.Source != "" {
			columns = append(columns, t.Source)
		}
	}
	sort.Strings(columns)
	return r.Save(matrix, name, columns)
}

// UpdateStats folds one trial outcome into a template's success rate as
// an exponential moving average and persists immediately. Unknown ids
// are a no-op.
func (r *Registry) UpdateStats(ctx context.Context, id string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matrices[id]
	if !ok {
		return
	}
	if success {
		stored.SuccessRate = stored.SuccessRate*0.9 + 0.1
	} else {
		stored.SuccessRate = stored.SuccessRate * 0.9
	}
	now := time.Now().UTC()
	stored.LastUsed = &now
	stored.UseCount++
	if err := r.persist(stored); err != nil {
		logger.FromContext(ctx).Warn("failed to persist template stats", "id", id, "error", err)
	}
}

// Delete removes a template from memory and disk.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matrices[id]; !ok {
		return core.NewError(nil, "TEMPLATE_NOT_FOUND", map[string]any{"id": id})
	}
	delete(r.matrices, id)
	path := filepath.Join(r.dir, id+".json")
	if err := os.Remove(path); err != nil {
		return core.NewError(err, "REGISTRY_WRITE_ERROR", map[string]any{"path": path})
	}
	return nil
}

func (r *Registry) persist(stored *StoredMatrix) error {
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return core.NewError(err, "REGISTRY_WRITE_ERROR", map[string]any{"id": stored.ID})
	}
	path := filepath.Join(r.dir, stored.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.NewError(err, "REGISTRY_WRITE_ERROR", map[string]any{"path": path})
	}
	return nil
}

func equalTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// laterTime orders non-nil before nil, then by recency.
func laterTime(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
