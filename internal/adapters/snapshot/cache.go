// Package snapshot persists the derived snapshot as JSON files next to the
// journal. The files are a disposable cache: they are trusted only when the
// manifest matches the journal fingerprint and every file matches its checksum.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rostr/internal/adapters/journal"
	"github.com/okian/rostr/internal/domain/model"
)

// FormatVersion is bumped whenever the layout of the cache files changes.
const FormatVersion = 2

// File names inside the cache directory.
const (
	PeopleFile      = "people.json"
	ProjectsFile    = "projects.json"
	AllocationsFile = "allocations.json"
	ManifestFile    = "manifest.json"
)

// Manifest ties the cache files to the journal content they were derived from.
type Manifest struct {
	Version     int                 `json:"version"`
	Journal     journal.Fingerprint `json:"journal"`
	LastEventID uint64              `json:"last_event_id"`
	EventCount  int                 `json:"event_count"`
	// Files maps each cache file to the xxhash of its content.
	Files map[string]string `json:"files"`
}

// Cache reads and writes the derived files in one directory.
type Cache struct {
	dir string
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Load returns the cached snapshot if it was derived from exactly the journal
// described by fp. It returns ErrCacheMiss or ErrStaleCache otherwise.
func (c *Cache) Load(fp journal.Fingerprint) (*model.Snapshot, error) {
	var m Manifest
	raw, err := os.ReadFile(c.path(ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaleCache, err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrStaleCache, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrStaleCache, m.Version)
	}
	if !sameJournal(m.Journal, fp) {
		return nil, fmt.Errorf("%w: journal %s, cache %s", ErrStaleCache, fp, m.Journal)
	}

	s := model.NewSnapshot()
	s.LastEventID = m.LastEventID
	s.EventCount = m.EventCount

	var people []model.Person
	if err := c.readVerified(m, PeopleFile, &people); err != nil {
		return nil, err
	}
	var projects []model.Project
	if err := c.readVerified(m, ProjectsFile, &projects); err != nil {
		return nil, err
	}
	var allocations []model.Allocation
	if err := c.readVerified(m, AllocationsFile, &allocations); err != nil {
		return nil, err
	}

	for _, p := range people {
		s.People[p.ID] = p
		s.PersonOrder = append(s.PersonOrder, p.ID)
	}
	for _, p := range projects {
		s.Projects[p.ID] = p
		s.ProjectOrder = append(s.ProjectOrder, p.ID)
	}
	for _, a := range allocations {
		s.Allocations[a.ID] = a
		s.AllocationOrder = append(s.AllocationOrder, a.ID)
	}
	return s, nil
}

// Save writes the snapshot files and then the manifest. Files whose content is
// unchanged are not rewritten. It returns the number of files written.
func (c *Cache) Save(s *model.Snapshot, fp journal.Fingerprint) (int, error) {
	people := make([]model.Person, 0, len(s.PersonOrder))
	for _, id := range s.PersonOrder {
		people = append(people, s.People[id])
	}
	projects := make([]model.Project, 0, len(s.ProjectOrder))
	for _, id := range s.ProjectOrder {
		projects = append(projects, s.Projects[id])
	}
	allocations := make([]model.Allocation, 0, len(s.AllocationOrder))
	for _, id := range s.AllocationOrder {
		allocations = append(allocations, s.Allocations[id])
	}

	m := Manifest{
		Version:     FormatVersion,
		Journal:     fp,
		LastEventID: s.LastEventID,
		EventCount:  s.EventCount,
		Files:       map[string]string{},
	}
	written := 0
	for _, f := range []struct {
		name string
		v    any
	}{
		{PeopleFile, people},
		{ProjectsFile, projects},
		{AllocationsFile, allocations},
	} {
		data, err := marshalStable(f.v)
		if err != nil {
			return written, fmt.Errorf("encode %s: %w", f.name, err)
		}
		m.Files[f.name] = checksum(data)
		changed, err := c.writeIfChanged(f.name, data)
		if err != nil {
			return written, err
		}
		if changed {
			written++
		}
	}

	data, err := marshalStable(m)
	if err != nil {
		return written, fmt.Errorf("encode %s: %w", ManifestFile, err)
	}
	changed, err := c.writeIfChanged(ManifestFile, data)
	if err != nil {
		return written, err
	}
	if changed {
		written++
	}
	return written, nil
}

// Invalidate removes the manifest so the next load rebuilds.
func (c *Cache) Invalidate() error {
	err := os.Remove(c.path(ManifestFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *Cache) readVerified(m Manifest, name string, dst any) error {
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStaleCache, name, err)
	}
	if want, ok := m.Files[name]; !ok || want != checksum(data) {
		return fmt.Errorf("%w: %s checksum mismatch", ErrStaleCache, name)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStaleCache, name, err)
	}
	return nil
}

func (c *Cache) writeIfChanged(name string, data []byte) (bool, error) {
	current, err := os.ReadFile(c.path(name))
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err := writeFileAtomic(c.path(name), data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", name, err)
	}
	return true, nil
}

func sameJournal(a, b journal.Fingerprint) bool {
	return a.Hash == b.Hash && a.Size == b.Size && a.Records == b.Records
}

func checksum(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

func marshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// writeFileAtomic replaces path with data through a synced temporary file, so
// a crash leaves either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
