// Package project persists editing projects: a name, the image being
// edited and when it was last touched.
package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown project ids
var ErrNotFound = errors.New("project not found")

// Project is one saved editing session
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ImageRef     string    `json:"image_ref"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks the fields a store requires
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.TrimSpace(p.ImageRef) == "" {
		return fmt.Errorf("project image reference is required")
	}
	return nil
}

// Store keeps projects. List returns the most recently modified first.
type Store interface {
	Create(ctx context.Context, p Project) (Project, error)
	Get(ctx context.Context, id string) (Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, p Project) (Project, error)
	Delete(ctx context.Context, id string) error
}

// prepare stamps p for writing. A fresh id is assigned when empty.
func prepare(p Project, now time.Time) (Project, error) {
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LastModified = now.UTC()
	return p, nil
}

func sortRecent(ps []Project) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].LastModified.After(ps[j].LastModified)
	})
}
