package graph

import (
	"context"
	"fmt"

	"github.com/loctrack/agent/internal/store"
)

// Load rebuilds a RelatedData from everything persisted in s. Changes
// after loading are applied incrementally via the Put* methods as the sync
// engine and facade mutate the graph. The facade's Init does not call
// Load; it fills its graph with its own reloadGraphFromStore.
func Load(ctx context.Context, s *store.Store) (*RelatedData, error) {
	g := New()

	workspaces, err := s.Workspaces.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspaces: %w", err)
	}
	for _, w := range workspaces {
		g.PutWorkspace(w)
	}

	clients, err := s.Clients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	for _, c := range clients {
		g.PutClient(c)
	}

	projects, err := s.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	for _, p := range projects {
		g.PutProject(p)
	}

	tasks, err := s.Tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, t := range tasks {
		g.PutTask(t)
	}

	tags, err := s.Tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	for _, t := range tags {
		g.PutTag(t)
	}

	entries, err := s.TimeEntries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load time entries: %w", err)
	}
	for _, e := range entries {
		g.PutTimeEntry(e)
	}

	return g, nil
}
