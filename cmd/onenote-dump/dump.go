package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/onenote-dump/pkg/export"
	"github.com/Sternrassler/onenote-dump/pkg/onenote"
	"github.com/spf13/cobra"
)

type dumpOptions struct {
	maxPages  int
	startPage int
}

func newDumpCmd() *cobra.Command {
	var opts dumpOptions

	cmd := &cobra.Command{
		Use:   "dump <output_dir> <notebook> [section_group] [section]",
		Short: "Write a notebook's pages as Markdown",
		Long: `Write a notebook's pages as Markdown below output_dir.

section_group: * for all groups (default), / for the notebook's root sections
only, group/sub_group for one nested group.
section: * for all sections (default), or a section's display name.`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.maxPages, "max-pages", "m", 0, "max pages to dump, 0 for all")
	cmd.Flags().IntVarP(&opts.startPage, "start-page", "s", 0, "first page number to dump")
	return cmd
}

func runDump(cmd *cobra.Command, args []string, opts dumpOptions) error {
	outputDir, notebook := args[0], args[1]
	groupFilter, sectionFilter := onenote.MatchAll, onenote.MatchAll
	if len(args) > 2 {
		groupFilter = args[2]
	}
	if len(args) > 3 {
		sectionFilter = args[3]
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	a.logger.Info().Str("dir", outputDir).Msg("Writing notebook")

	ctx := cmd.Context()
	exporter := export.New(a.service, outputDir)
	start := time.Now()

	var seen, written int
	for page, err := range a.service.NotebookPages(ctx, notebook, groupFilter, sectionFilter) {
		if err != nil {
			var notFound *onenote.NotebookNotFoundError
			if errors.As(err, &notFound) {
				a.logger.Error().Str("notebook", notebook).Strs("available", notFound.Available).Msg("Notebook not found")
			}
			return err
		}

		seen++
		if opts.maxPages > 0 && seen > opts.maxPages {
			break
		}
		if opts.startPage > 0 && seen < opts.startPage {
			a.logger.Info().Int("page", seen).Str("title", page.Title).Msg("Page skipped")
			continue
		}

		a.logger.Info().Int("page", seen).Str("title", page.Title).Msg("Page")
		if _, err := exporter.Export(ctx, page); err != nil {
			return err
		}
		written++
	}

	a.logger.Info().
		Int("pages", written).
		Str("elapsed", fmt.Sprintf("%.1fs", time.Since(start).Seconds())).
		Msg("Done")
	return nil
}
