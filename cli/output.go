package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

type formatter struct {
	format string
	w      io.Writer
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *formatter {
	return &formatter{format: opts.Format, w: cmd.OutOrStdout()}
}

func (f *formatter) json(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *formatter) todos(todos []models.Todo) error {
	if f.format == "json" {
		if todos == nil {
			todos = []models.Todo{}
		}
		return f.json(todos)
	}
	if len(todos) == 0 {
		_, err := fmt.Fprintln(f.w, "No todos.")
		return err
	}
	for _, t := range todos {
		if err := f.line(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) todo(t models.Todo) error {
	if f.format == "json" {
		return f.json(t)
	}
	return f.line(t)
}

func (f *formatter) deleted(id int64) error {
	if f.format == "json" {
		return f.json(map[string]any{"success": true, "id": id})
	}
	_, err := fmt.Fprintf(f.w, "Deleted %d\n", id)
	return err
}

func (f *formatter) feedReset(handle string) error {
	if f.format == "json" {
		return f.json(map[string]any{"handle": handle})
	}
	_, err := fmt.Fprintf(f.w, "Feed reset, new handle %s\n", handle)
	return err
}

func (f *formatter) compactionQueued() error {
	if f.format == "json" {
		return f.json(map[string]any{"success": true})
	}
	_, err := fmt.Fprintln(f.w, "Compaction queued.")
	return err
}

func (f *formatter) line(t models.Todo) error {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	_, err := fmt.Fprintf(f.w, "[%s] %d  %s\n", mark, t.ID, t.Title)
	return err
}
