package main

import (
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pixelctl",
		Short: "Render pixel-positioned document templates from the command line",
		Long: `pixelctl renders office templates (page backgrounds plus positioned fields)
into PDF documents without going through the API.

It reads templates and records as JSON files and writes PDFs to a directory.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 不存在时忽略
			_ = godotenv.Load()
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log render details to stderr")

	cmd.AddCommand(
		newRenderCmd(opts),
		newBulkCmd(opts),
		newCatalogCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)
	return cmd
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
