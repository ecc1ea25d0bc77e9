// Package detect inspects a directory and suggests how to run it.
//
// Detection is advisory: it only helps a user fill in a new project's
// commands and never touches supervisor state. Marker files are checked in
// the top-level directory only, and the first matching rule wins:
//
//	Python   requirements.txt or setup.py
//	Node.js  package.json
//	Rust     Cargo.toml
//	Go       go.mod
//	Docker   docker-compose.yml or docker-compose.yaml
package detect

import (
	"os"
	"path/filepath"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// Type is a detected project type.
type Type string

const (
	TypePython  Type = "Python"
	TypeNode    Type = "Node.js"
	TypeRust    Type = "Rust"
	TypeGo      Type = "Go"
	TypeDocker  Type = "Docker"
	TypeUnknown Type = "Unknown"
)

// Suggestion is a command the user may want to run in the project.
type Suggestion struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Recommended bool   `json:"recommended"`
}

// Result is the outcome of Detect.
type Result struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Type        Type         `json:"type"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Commands returns the recommended commands in order.
func (r Result) Commands() []string {
	var out []string
	for _, s := range r.Suggestions {
		if s.Recommended {
			out = append(out, s.Command)
		}
	}
	return out
}

// rule pairs marker files with the function that builds suggestions.
type rule struct {
	typ     Type
	markers []string
	suggest func(d dir) []Suggestion
}

// rules are evaluated in priority order.
var rules = []rule{
	{TypePython, []string{"requirements.txt", "setup.py"}, suggestPython},
	{TypeNode, []string{"package.json"}, suggestNode},
	{TypeRust, []string{"Cargo.toml"}, suggestRust},
	{TypeGo, []string{"go.mod"}, suggestGo},
	{TypeDocker, []string{"docker-compose.yml", "docker-compose.yaml"}, suggestDocker},
}

// Detect inspects path. It fails with a NotFound error when path does not
// exist and an IO error when it cannot be read.
func Detect(path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, errors.NewIOError("failed to resolve path", err).WithPath(path)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return Result{}, errors.NewNotFoundError("directory", path)
	}
	if err != nil {
		return Result{}, errors.NewIOError("failed to inspect directory", err).WithPath(abs)
	}
	if !info.IsDir() {
		return Result{}, errors.NewValidationError("not a directory").WithField("path").WithValue(path)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return Result{}, errors.NewIOError("failed to read directory", err).WithPath(abs)
	}

	d := dir(abs)
	res := Result{
		Name:        filepath.Base(abs),
		Path:        abs,
		Type:        TypeUnknown,
		Suggestions: []Suggestion{},
	}
	for _, r := range rules {
		if d.hasAny(r.markers...) {
			res.Type = r.typ
			res.Suggestions = r.suggest(d)
			break
		}
	}
	return res, nil
}

// dir is a project root being inspected.
type dir string

func (d dir) join(name string) string {
	return filepath.Join(string(d), name)
}

func (d dir) has(name string) bool {
	_, err := os.Stat(d.join(name))
	return err == nil
}

func (d dir) hasAny(names ...string) bool {
	for _, n := range names {
		if d.has(n) {
			return true
		}
	}
	return false
}

func (d dir) read(name string) ([]byte, bool) {
	data, err := os.ReadFile(d.join(name))
	if err != nil {
		return nil, false
	}
	return data, true
}
