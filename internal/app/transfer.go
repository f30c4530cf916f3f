package app

import (
	"context"

	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/ops"
)

// ExportAll captures tasks, events and notes as one document.
func (a *App) ExportAll(ctx context.Context) (*ops.Document, error) {
	var doc *ops.Document
	err := a.Do(ctx, func(context.Context) error {
		var err error
		doc, err = ops.ExportAll(a.stores(), a.now())
		return err
	})
	return doc, err
}

// ImportAll validates data and replaces every collection in a single command.
// An invalid document leaves every collection unchanged.
func (a *App) ImportAll(ctx context.Context, data []byte) (*ops.ImportOutput, error) {
	var out *ops.ImportOutput
	err := a.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = ops.ImportAll(ctx, a.stores(), data)
		return err
	})
	return out, err
}

// ExportFile writes the whole-state document to path.
func (a *App) ExportFile(ctx context.Context, path string) (*ops.ExportOutput, error) {
	doc, err := a.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	return ops.ExportFile(doc, a.cfg, path)
}

// ImportFile replaces every collection with the document at path.
func (a *App) ImportFile(ctx context.Context, path string) (*ops.ImportOutput, error) {
	c, err := ops.ReadDocumentFile(a.cfg, path)
	if err != nil {
		return nil, err
	}
	return a.commit(ctx, c)
}

// ExportTasksFile writes uncompleted tasks to path, one per line.
func (a *App) ExportTasksFile(ctx context.Context, path string) (*ops.ExportOutput, error) {
	var text string
	if err := a.Do(ctx, func(context.Context) error {
		text = a.Lists.ExportUncompleted()
		return nil
	}); err != nil {
		return nil, err
	}
	return ops.ExportTasksFile(text, a.cfg, path, a.now())
}

// ImportTasksFile appends one task per non-blank line of the file at path.
func (a *App) ImportTasksFile(ctx context.Context, path string) ([]lists.Task, error) {
	text, err := ops.ReadTasksFile(a.cfg, path)
	if err != nil {
		return nil, err
	}
	var added []lists.Task
	err = a.Do(ctx, func(ctx context.Context) error {
		added = a.Lists.ImportTasks(ctx, text)
		return nil
	})
	return added, err
}

func (a *App) commit(ctx context.Context, c *ops.Collections) (*ops.ImportOutput, error) {
	var out *ops.ImportOutput
	err := a.Do(ctx, func(ctx context.Context) error {
		out = ops.Commit(ctx, a.stores(), c)
		return nil
	})
	return out, err
}
