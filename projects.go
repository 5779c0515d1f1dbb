package photocomp

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/pkg/project"
)

// ErrNoStore is returned by project actions on an Editor without a store
var ErrNoStore = errors.New("no project store configured")

// SaveProject records the loaded image as a project called name. The first
// save creates the project; later saves in the same session update it.
func (e *Editor) SaveProject(ctx context.Context, name string) (project.Project, error) {
	if e.store == nil {
		return project.Project{}, ErrNoStore
	}

	e.mu.RLock()
	p := project.Project{ID: e.projectID, Name: name, ImageRef: e.source}
	e.mu.RUnlock()
	if p.ImageRef == "" {
		return project.Project{}, e.fail("save project", ErrNoImage)
	}

	var err error
	if p.ID == "" {
		p, err = e.store.Create(ctx, p)
	} else {
		p, err = e.store.Update(ctx, p)
	}
	if err != nil {
		return project.Project{}, e.fail("save project", err)
	}

	e.mu.Lock()
	e.projectID = p.ID
	e.mu.Unlock()
	e.logger.Info("project saved", zap.String("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// OpenProject loads the image of a stored project
func (e *Editor) OpenProject(ctx context.Context, id string) (project.Project, error) {
	if e.store == nil {
		return project.Project{}, ErrNoStore
	}

	p, err := e.store.Get(ctx, id)
	if err != nil {
		return project.Project{}, e.fail("open project", err)
	}
	if err := e.Load(ctx, p.ImageRef); err != nil {
		return project.Project{}, err
	}

	e.mu.Lock()
	e.projectID = p.ID
	e.mu.Unlock()
	return p, nil
}

// Projects lists stored projects, most recently modified first
func (e *Editor) Projects(ctx context.Context) ([]project.Project, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.List(ctx)
}
