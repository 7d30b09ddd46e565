package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pixelCV/internal/generate"
	"pixelCV/internal/storage"
)

func newBulkCmd(root *rootOptions) *cobra.Command {
	var (
		templatesDir string
		recordPath   string
		outDir       string
		country      string
		delay        time.Duration
		compress     bool
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Render every template in a directory with one record",
		Long: `Renders each *.json template in --templates (in file name order) with the
same record. Documents are written one at a time with --delay between them;
the first failure stops the run and the files already written are kept.

The country filter defaults to the record's country.`,
		Example: `  pixelctl bulk --templates ./templates --record amina.json --out ./out
  pixelctl bulk --templates ./templates --record amina.json --country qatar --delay 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := root.logger(cmd.ErrOrStderr())

			rec, recCountry, err := loadRecord(recordPath)
			if err != nil {
				return err
			}
			if country == "" {
				country = recCountry
			}
			templates, err := loadTemplates(templatesDir, country)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				return fmt.Errorf("no templates in %s match country %q", templatesDir, country)
			}

			index := 0
			deliver := generate.DelivererFunc(func(_ context.Context, a generate.Artifact) error {
				path, err := writeArtifact(outDir, storage.ArtifactName(index, a.Name), a.Data)
				if err != nil {
					return err
				}
				index++
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})

			service := newService(logger, delay, compress)
			delivered, err := service.Bulk(cmd.Context(), templates, rec, deliver)
			var batchErr *generate.BatchError
			if errors.As(err, &batchErr) {
				return fmt.Errorf("stopped at %q after %d of %d documents: %w",
					batchErr.TemplateName, batchErr.Delivered, batchErr.Total, batchErr.Err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d documents written to %s\n", delivered, outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&templatesDir, "templates", "", "Directory of template JSON files")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Record JSON file")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&country, "country", "", "Only render templates for this country")
	cmd.Flags().DurationVar(&delay, "delay", generate.DefaultDelay, "Pause between documents")
	cmd.Flags().BoolVar(&compress, "compress", true, "Compress PDF streams")
	_ = cmd.MarkFlagRequired("templates")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
