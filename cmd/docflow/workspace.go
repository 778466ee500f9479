// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/agent"
	"github.com/pdiddy/docflow/internal/convert"
	"github.com/pdiddy/docflow/internal/research"
	"github.com/pdiddy/docflow/internal/store"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

// errNoProject reports a command run before any project was selected.
var errNoProject = errors.New("no project selected: run \"docflow project new\" or \"docflow project use\"")

// workspace is the loaded session: the store, the configuration, and an
// engine over the active project.
type workspace struct {
	cfg    types.Config
	store  *store.Store
	engine *workflow.Engine

	// base is the project as last loaded or saved; saves write only what
	// changed since.
	mu   sync.Mutex
	base types.Project
}

// offlineBackend stands in for the model on commands that never call it.
type offlineBackend struct{}

func (offlineBackend) Complete(context.Context, agent.Request) (agent.Response, error) {
	return agent.Response{}, errors.New("this command does not use a model")
}

// openWorkspace loads the session project. When withModel is false no
// backend is built, so local commands work without an API key.
func openWorkspace(ctx context.Context, withModel bool) (*workspace, error) {
	cfg := appConfig()
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	w := &workspace{cfg: cfg, store: st}

	state, err := w.loadState(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	var backend agent.Backend = offlineBackend{}
	if withModel {
		if backend, err = agent.NewBackend(ctx, cfg.AI); err != nil {
			st.Close()
			return nil, err
		}
	}
	agents := agent.New(backend, cfg.Research)
	src, err := research.New(cfg.Research, agents)
	if err != nil {
		st.Close()
		return nil, err
	}
	w.engine = workflow.NewEngine(state, agents, src)
	w.base = state.Project
	return w, nil
}

func (w *workspace) loadState(ctx context.Context) (workflow.State, error) {
	id, err := w.store.Session(ctx, store.KeyProject)
	if err != nil {
		return workflow.State{}, err
	}
	if id == "" {
		return workflow.State{}, errNoProject
	}
	p, err := w.store.LoadProject(ctx, id)
	if err != nil {
		return workflow.State{}, err
	}
	flowID, err := w.store.Session(ctx, store.KeyFlow)
	if err != nil {
		return workflow.State{}, err
	}
	state := workflow.NewState(p, flowID)

	selected, err := w.store.Session(ctx, store.KeySelected)
	if err != nil {
		return workflow.State{}, err
	}
	if f, err := state.Active(); err == nil && selected != "" {
		if _, err := workflow.Node(f, selected); err == nil {
			state.Selected = selected
		}
	}
	return state, nil
}

// save writes what changed in the project and the session selection.
func (w *workspace) save(ctx context.Context) error {
	return w.saveSnapshot(ctx, w.engine.Snapshot())
}

func (w *workspace) saveSnapshot(ctx context.Context, s workflow.State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.SaveChanges(ctx, w.base, s.Project); err != nil {
		return err
	}
	w.base = s.Project
	return saveSession(ctx, w.store, s)
}

// saveState writes the whole project and makes it the session project.
func saveState(ctx context.Context, st *store.Store, s workflow.State) error {
	if err := st.SaveProject(ctx, s.Project); err != nil {
		return err
	}
	return saveSession(ctx, st, s)
}

func saveSession(ctx context.Context, st *store.Store, s workflow.State) error {
	for key, value := range map[string]string{
		store.KeyProject:  s.Project.ID,
		store.KeyFlow:     s.ActiveFlow,
		store.KeySelected: s.Selected,
	} {
		if err := st.SetSession(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// converter builds the knowledge file converter from the configuration.
func (w *workspace) converter(ctx context.Context) (convert.Converter, error) {
	return convert.New(ctx, w.cfg.Convert)
}

// run opens the workspace, calls fn, and saves afterwards. The state is
// saved even when fn fails so agent status and applied results are kept.
func run(cmd *cobra.Command, withModel bool, fn func(ctx context.Context, w *workspace) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w, err := openWorkspace(ctx, withModel)
	if err != nil {
		return err
	}
	defer w.Close()

	runErr := fn(ctx, w)
	if err := w.save(ctx); err != nil {
		if runErr != nil {
			return fmt.Errorf("%w (saving also failed: %v)", runErr, err)
		}
		return err
	}
	return runErr
}

// view opens the workspace for a read-only command.
func view(cmd *cobra.Command, fn func(ctx context.Context, w *workspace) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(ctx, w)
}

// loadFiles converts paths, printing progress, and fails when any file
// could not be converted.
func (w *workspace) loadFiles(cmd *cobra.Command, paths []string) ([]types.File, error) {
	if len(paths) == 0 {
		return []types.File{}, nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	conv, err := w.converter(ctx)
	if err != nil {
		return nil, err
	}
	files, result := convert.LoadFiles(ctx, conv, paths, cmd.ErrOrStderr())
	if result.HasFailures() {
		return nil, fmt.Errorf("%d of %d file(s) failed conversion", result.Failed, result.Total())
	}
	return files, nil
}
