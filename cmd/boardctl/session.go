package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/reorder"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/taskapi"
)

type globalOptions struct {
	apiURL  string
	token   string
	project int
	order   string
	verbose bool
}

// openEngine builds an engine against the task API and loads the board.
func openEngine(ctx context.Context, opts *globalOptions, stderr io.Writer) (*reorder.Engine, error) {
	if opts.apiURL == "" {
		return nil, errors.New("--api-url is required")
	}
	if opts.project <= 0 {
		return nil, errors.New("--project is required")
	}
	order, err := domain.ParseWeightOrder(opts.order)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(log.WarnLevel)
	if opts.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	entry := log.NewEntry(logger)

	engine := reorder.New(taskapi.New(opts.apiURL, opts.token), opts.project, reorder.Options{
		Order:    order,
		Notifier: reorder.LogNotifier{Logger: entry},
		Logger:   entry,
	})
	if err := engine.Load(ctx); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	return engine, nil
}

func printColumns(w io.Writer, snap reorder.Snapshot) {
	for i, col := range snap.Columns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", col.Status.Name, len(col.Tasks))
		fmt.Fprintln(w, strings.Repeat("-", len(col.Status.Name)+len(fmt.Sprint(len(col.Tasks)))+3))
		for _, t := range col.Tasks {
			fmt.Fprintf(w, "  #%-6d w=%-3d %s\n", t.ID, t.PriorityWeight, t.Name)
		}
	}
}
