package cmd

import (
	"context"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/config"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

// projectBackend edits project definitions either through a running server
// or, when none is running, directly in the store.
type projectBackend interface {
	List(ctx context.Context) ([]api.ProjectView, error)
	Add(ctx context.Context, p project.Project) (api.ProjectView, error)
	Update(ctx context.Context, p project.Project) (api.ProjectView, error)
	Remove(ctx context.Context, id string) error
	// Remote reports whether changes go through the server.
	Remote() bool
}

type localProjects struct {
	store *project.Store
}

// Without a server nothing is supervised, so every project is Stopped.
func stoppedView(p project.Project) api.ProjectView {
	return api.ProjectView{Project: p, Status: supervisor.Status{ProjectID: p.ID}}
}

func (l localProjects) List(context.Context) ([]api.ProjectView, error) {
	projects := l.store.List()
	out := make([]api.ProjectView, len(projects))
	for i, p := range projects {
		out[i] = stoppedView(p)
	}
	return out, nil
}

func (l localProjects) Add(_ context.Context, p project.Project) (api.ProjectView, error) {
	added, err := l.store.Add(p)
	if err != nil {
		return api.ProjectView{}, err
	}
	return stoppedView(added), nil
}

func (l localProjects) Update(_ context.Context, p project.Project) (api.ProjectView, error) {
	updated, err := l.store.Update(p)
	if err != nil {
		return api.ProjectView{}, err
	}
	return stoppedView(updated), nil
}

func (l localProjects) Remove(_ context.Context, id string) error {
	return l.store.Delete(id)
}

func (l localProjects) Remote() bool { return false }

type remoteProjects struct {
	client *api.Client
}

func (r remoteProjects) List(ctx context.Context) ([]api.ProjectView, error) {
	return r.client.Projects(ctx)
}

func (r remoteProjects) Add(ctx context.Context, p project.Project) (api.ProjectView, error) {
	return r.client.AddProject(ctx, p)
}

func (r remoteProjects) Update(ctx context.Context, p project.Project) (api.ProjectView, error) {
	return r.client.UpdateProject(ctx, p)
}

func (r remoteProjects) Remove(ctx context.Context, id string) error {
	return r.client.DeleteProject(ctx, id)
}

func (r remoteProjects) Remote() bool { return true }

// openProjects picks the backend: the server when one answers, otherwise
// the store file.
func openProjects(ctx context.Context, cfg *config.Config, logger *logging.Logger) (projectBackend, error) {
	if client := connect(ctx, cfg); client != nil {
		return remoteProjects{client: client}, nil
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return localProjects{store: store}, nil
}

// resolveProject finds one project by ID or case-insensitive name.
func resolveProject(views []api.ProjectView, ref string) (api.ProjectView, error) {
	for _, v := range views {
		if v.ID == ref {
			return v, nil
		}
	}
	for _, v := range views {
		if strings.EqualFold(v.Name, ref) {
			return v, nil
		}
	}
	return api.ProjectView{}, errors.NewNotFoundError("project", ref)
}

// selectProjects resolves each ref to projects. A ref is an ID, a name or
// a glob pattern over names ("api-*", "{web,worker}"); matching ignores
// case. Every ref must match at least one project. The result keeps list
// order and holds each project once.
func selectProjects(views []api.ProjectView, refs []string) ([]api.ProjectView, error) {
	selected := make(map[string]bool)
	for _, ref := range refs {
		if v, err := resolveProject(views, ref); err == nil {
			selected[v.ID] = true
			continue
		}

		g, err := glob.Compile(strings.ToLower(ref))
		if err != nil {
			return nil, errors.NewValidationError("invalid pattern").WithField("project").WithValue(ref)
		}
		matched := false
		for _, v := range views {
			if g.Match(strings.ToLower(v.Name)) {
				selected[v.ID] = true
				matched = true
			}
		}
		if !matched {
			return nil, errors.NewNotFoundError("project", ref)
		}
	}

	var out []api.ProjectView
	for _, v := range views {
		if selected[v.ID] {
			out = append(out, v)
		}
	}
	return out, nil
}
