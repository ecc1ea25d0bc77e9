// Package project defines supervised project definitions and their
// persisted store.
package project

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// Project is a directory plus the shell commands run in it.
type Project struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Path           string            `json:"path"`
	Commands       []string          `json:"commands"`
	AutoStart      bool              `json:"auto_start"`
	RestartOnCrash bool              `json:"restart_on_crash"`
	Enabled        bool              `json:"enabled"`
	Env            map[string]string `json:"env,omitempty"`
	// FailFast ends the session at the first failing command instead of
	// running the remaining ones.
	FailFast bool `json:"fail_fast,omitempty"`
}

// New returns a project with a fresh ID and the default flags: auto start,
// restart on crash and enabled all on.
func New(name, path string, commands []string) Project {
	return Project{
		ID:             uuid.NewString(),
		Name:           name,
		Path:           path,
		Commands:       slices.Clone(commands),
		AutoStart:      true,
		RestartOnCrash: true,
		Enabled:        true,
	}
}

// Validate checks the fields a launch depends on.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.NewValidationError("must not be empty").WithField("name")
	}
	if strings.TrimSpace(p.Path) == "" {
		return errors.NewValidationError("must not be empty").WithField("path")
	}
	if !slices.ContainsFunc(p.Commands, func(c string) bool { return strings.TrimSpace(c) != "" }) {
		return errors.NewValidationError("at least one command is required").WithField("commands")
	}
	for key := range p.Env {
		if key == "" || strings.ContainsAny(key, "= \t\n") {
			return errors.NewValidationError("invalid variable name").
				WithField("env").
				WithValue(key)
		}
	}
	// IDs appear in URL paths.
	if strings.ContainsAny(p.ID, "/?# \t\n") {
		return errors.NewValidationError("invalid id").WithField("id").WithValue(p.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (p Project) Clone() Project {
	c := p
	c.Commands = slices.Clone(p.Commands)
	if p.Env != nil {
		c.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			c.Env[k] = v
		}
	}
	return c
}
