package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pixelCV/internal/pdf"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		templatePath string
		recordPath   string
		outDir       string
		compress     bool
	)

	cmd := &cobra.Command{
		Use:     "render",
		Short:   "Render one template with one record into a PDF",
		Example: `  pixelctl render --template kuwait.json --record amina.json --out ./out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := root.logger(cmd.ErrOrStderr())

			tpl, err := loadTemplate(templatePath)
			if err != nil {
				return err
			}
			rec, _, err := loadRecord(recordPath)
			if err != nil {
				return err
			}

			artifact, err := newService(logger, 0, compress).Render(tpl, rec)
			if errors.Is(err, pdf.ErrNoPages) {
				return fmt.Errorf("template %q has no pages", tpl.Name)
			}
			if err != nil {
				return err
			}

			path, err := writeArtifact(outDir, artifact.Name, artifact.Data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template JSON file")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Record JSON file")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&compress, "compress", true, "Compress PDF streams")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
