package project

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logging"
)

// Store persists projects to a JSON file. Every mutation re-reads the file
// under an exclusive flock, applies the change and writes the result
// atomically, so several devboot processes can share one file.
type Store struct {
	path string

	// fileMu serializes in-process users of lock; a Flock already held by
	// this process does not block a second Lock call.
	fileMu sync.Mutex
	lock   *flock.Flock

	mu       sync.RWMutex
	doc      Document
	lastData []byte

	logger *logging.Logger
}

// Open loads the store at path, creating a default document if the file
// does not exist yet.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewIOError("failed to create config directory", err).WithPath(filepath.Dir(path))
	}

	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.WithComponent("store"),
	}

	if err := s.withFileLock(func() error {
		doc, data, err := s.read()
		if err != nil {
			return err
		}
		if data == nil {
			return s.write(doc)
		}
		s.doc, s.lastData = doc, data
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) withFileLock(fn func() error) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.NewIOError("failed to lock project file", err).WithPath(s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// read loads the document from disk. A missing file yields the default
// document and nil data.
func (s *Store) read() (Document, []byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return DefaultDocument(), nil, nil
	}
	if err != nil {
		return Document{}, nil, errors.NewIOError("failed to read project file", err).WithPath(s.path)
	}

	doc := DefaultDocument()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, nil, errors.NewIOError("project file is not valid JSON", err).WithPath(s.path)
		}
	}
	doc.normalize()
	return doc, data, nil
}

// write saves doc through a temp file and rename. Caller holds the file lock.
func (s *Store) write(doc Document) error {
	doc.normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewIOError("failed to encode project file", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".projects-*.json")
	if err != nil {
		return errors.NewIOError("failed to create temp file", err).WithPath(s.path)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.NewIOError("failed to write project file", err).WithPath(tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.NewIOError("failed to sync project file", err).WithPath(tmpPath)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.NewIOError("failed to close project file", err).WithPath(tmpPath)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return errors.NewIOError("failed to replace project file", err).WithPath(s.path)
	}

	s.mu.Lock()
	s.doc, s.lastData = doc, data
	s.mu.Unlock()
	return nil
}

// mutate applies fn to the current on-disk document and saves it.
func (s *Store) mutate(fn func(doc *Document) error) error {
	return s.withFileLock(func() error {
		doc, _, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		return s.write(doc)
	})
}

// Reload re-reads the file. It reports whether the content differs from
// what the store last read or wrote.
func (s *Store) Reload() (changed bool, err error) {
	err = s.withFileLock(func() error {
		doc, data, err := s.read()
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		changed = !bytes.Equal(data, s.lastData)
		s.doc, s.lastData = doc, data
		return nil
	})
	return changed, err
}

// List returns all projects in file order.
func (s *Store) List() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, len(s.doc.Projects))
	for i, p := range s.doc.Projects {
		out[i] = p.Clone()
	}
	return out
}

// Get returns the project with the given ID.
func (s *Store) Get(id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.doc.index(id); i >= 0 {
		return s.doc.Projects[i].Clone(), nil
	}
	return Project{}, errors.NewNotFoundError("project", id)
}

// Resolve finds a project by ID, then by case-insensitive name.
func (s *Store) Resolve(ref string) (Project, error) {
	if p, err := s.Get(ref); err == nil {
		return p, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.doc.Projects {
		if strings.EqualFold(p.Name, ref) {
			return p.Clone(), nil
		}
	}
	return Project{}, errors.NewNotFoundError("project", ref)
}

// Add validates and appends p, assigning an ID if it has none.
func (s *Store) Add(p Project) (Project, error) {
	p = p.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}

	err := s.mutate(func(doc *Document) error {
		if doc.index(p.ID) >= 0 {
			return errors.NewValidationError("a project with this id already exists").
				WithField("id").
				WithValue(p.ID)
		}
		doc.Projects = append(doc.Projects, p)
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	s.logger.Info("project added", "project_id", p.ID, "name", p.Name)
	return p.Clone(), nil
}

// Update replaces the stored project with the same ID.
func (s *Store) Update(p Project) (Project, error) {
	p = p.Clone()
	if err := p.Validate(); err != nil {
		return Project{}, err
	}

	err := s.mutate(func(doc *Document) error {
		i := doc.index(p.ID)
		if i < 0 {
			return errors.NewNotFoundError("project", p.ID)
		}
		doc.Projects[i] = p
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	s.logger.Info("project updated", "project_id", p.ID)
	return p.Clone(), nil
}

// Delete removes the project with the given ID.
func (s *Store) Delete(id string) error {
	err := s.mutate(func(doc *Document) error {
		i := doc.index(id)
		if i < 0 {
			return errors.NewNotFoundError("project", id)
		}
		doc.Projects = append(doc.Projects[:i], doc.Projects[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// Settings returns the global settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Settings
}

// UpdateSettings replaces the global settings.
func (s *Store) UpdateSettings(settings Settings) error {
	if settings.Theme == "" {
		settings.Theme = DefaultSettings().Theme
	}
	return s.mutate(func(doc *Document) error {
		doc.Settings = settings
		return nil
	})
}
