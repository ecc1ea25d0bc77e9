package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/testutil"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "devboot", "projects.json"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func readDocument(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON in %s: %v", path, err)
	}
	return doc
}

func TestOpen_CreatesDefaultDocument(t *testing.T) {
	s := openStore(t)

	doc := readDocument(t, s.Path())
	if doc.Version != "1.0" {
		t.Errorf("Version = %q, want %q", doc.Version, "1.0")
	}
	if doc.Settings != DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", doc.Settings)
	}
	if doc.Projects == nil || len(doc.Projects) != 0 {
		t.Errorf("Projects = %v, want empty list", doc.Projects)
	}
	if !DefaultSettings().AutoStartWithSystem || DefaultSettings().Theme != "dark" {
		t.Errorf("unexpected default settings: %+v", DefaultSettings())
	}
}

func TestOpen_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"projects.json": `{
  "version": "1.0",
  "settings": {"auto_start_with_system": false, "theme": "light", "minimize_to_tray": false, "show_notifications": true},
  "projects": [
    {"id": "p1", "name": "api", "path": "/srv/api", "commands": ["go run ."], "auto_start": false, "restart_on_crash": true, "enabled": true}
  ]
}`,
	})

	s, err := Open(filepath.Join(dir, "projects.json"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if s.Settings().Theme != "light" {
		t.Errorf("Theme = %q, want light", s.Settings().Theme)
	}
	p, err := s.Get("p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name != "api" || p.AutoStart {
		t.Errorf("unexpected project: %+v", p)
	}
}

func TestOpen_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"projects.json": "{not json"})

	_, err := Open(filepath.Join(dir, "projects.json"), nil)
	if !errors.Is(err, errors.ErrIO) {
		t.Errorf("Open() = %v, want ErrIO", err)
	}
}

func TestStore_CRUD(t *testing.T) {
	s := openStore(t)

	added, err := s.Add(Project{Name: "api", Path: "/srv/api", Commands: []string{"go run ."}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added.ID == "" {
		t.Fatal("Add should assign an ID")
	}

	got, err := s.Get(added.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "api" {
		t.Errorf("Name = %q, want api", got.Name)
	}

	got.Name = "api-v2"
	got.Env = map[string]string{"PORT": "8080"}
	if _, err := s.Update(got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc := readDocument(t, s.Path())
	if len(doc.Projects) != 1 || doc.Projects[0].Name != "api-v2" || doc.Projects[0].Env["PORT"] != "8080" {
		t.Errorf("file not updated: %+v", doc.Projects)
	}

	if err := s.Delete(added.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(added.ID); !errors.Is(err, errors.ErrProjectNotFound) {
		t.Errorf("Get after Delete = %v, want ErrProjectNotFound", err)
	}
	if len(readDocument(t, s.Path()).Projects) != 0 {
		t.Error("file still lists the deleted project")
	}
}

func TestStore_Errors(t *testing.T) {
	s := openStore(t)
	p, err := s.Add(New("api", "/srv/api", []string{"go run ."}))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"duplicate id", func() error { _, err := s.Add(p); return err }, errors.ErrInvalidInput},
		{"invalid add", func() error { _, err := s.Add(Project{Name: "x"}); return err }, errors.ErrInvalidInput},
		{"update unknown", func() error {
			_, err := s.Update(New("ghost", "/tmp", []string{"true"}))
			return err
		}, errors.ErrProjectNotFound},
		{"delete unknown", func() error { return s.Delete("ghost") }, errors.ErrProjectNotFound},
		{"get unknown", func() error { _, err := s.Get("ghost"); return err }, errors.ErrProjectNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_Resolve(t *testing.T) {
	s := openStore(t)
	p, err := s.Add(New("Web Frontend", "/srv/web", []string{"npm start"}))
	if err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{p.ID, "Web Frontend", "web frontend"} {
		got, err := s.Resolve(ref)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", ref, err)
			continue
		}
		if got.ID != p.ID {
			t.Errorf("Resolve(%q) = %s, want %s", ref, got.ID, p.ID)
		}
	}
	if _, err := s.Resolve("nope"); !errors.Is(err, errors.ErrProjectNotFound) {
		t.Errorf("Resolve(nope) = %v, want ErrProjectNotFound", err)
	}
}

func TestStore_ListPreservesOrderAndCopies(t *testing.T) {
	s := openStore(t)
	for _, name := range []string{"c", "a", "b"} {
		if _, err := s.Add(New(name, "/srv/"+name, []string{"true"})); err != nil {
			t.Fatal(err)
		}
	}

	list := s.List()
	if len(list) != 3 || list[0].Name != "c" || list[1].Name != "a" || list[2].Name != "b" {
		t.Fatalf("List() order wrong: %v", list)
	}

	list[0].Commands[0] = "mutated"
	if s.List()[0].Commands[0] != "true" {
		t.Error("List() leaked internal state")
	}
}

func TestStore_SharedFileAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	a, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Add(New("from-a", "/a", []string{"true"})); err != nil {
		t.Fatal(err)
	}
	// b has a stale cache but mutations re-read the file first.
	if _, err := b.Add(New("from-b", "/b", []string{"true"})); err != nil {
		t.Fatal(err)
	}

	if n := len(readDocument(t, path).Projects); n != 2 {
		t.Fatalf("file has %d projects, want 2", n)
	}

	changed, err := a.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(a.List()) != 2 {
		t.Errorf("Reload() changed=%v, projects=%d; want true, 2", changed, len(a.List()))
	}

	changed, err = a.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("second Reload() should report no change")
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	s := openStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Add(New("p", "/p", []string{"true"})); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(readDocument(t, s.Path()).Projects); n != 10 {
		t.Errorf("file has %d projects, want 10", n)
	}
}

func TestStore_Settings(t *testing.T) {
	s := openStore(t)

	want := Settings{AutoStartWithSystem: false, Theme: "light", MinimizeToTray: false, ShowNotifications: false}
	if err := s.UpdateSettings(want); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if s.Settings() != want {
		t.Errorf("Settings() = %+v, want %+v", s.Settings(), want)
	}
	if readDocument(t, s.Path()).Settings != want {
		t.Error("settings not persisted")
	}
}

func TestStore_Watch(t *testing.T) {
	s := openStore(t)

	var changes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, 20*time.Millisecond, func() { changes.Add(1) })
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Writes through the store are not external changes.
	if _, err := s.Add(New("own", "/own", []string{"true"})); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if changes.Load() != 0 {
		t.Fatalf("onChange fired %d times for the store's own write", changes.Load())
	}

	doc := readDocument(t, s.Path())
	doc.Projects = append(doc.Projects, New("external", "/ext", []string{"true"}))
	data, _ := json.MarshalIndent(doc, "", "  ")
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 3*time.Second, func() bool {
		return changes.Load() >= 1 && len(s.List()) == 2
	}, "reload and onChange after external edit")
}
