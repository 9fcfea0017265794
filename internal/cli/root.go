// Package cli provides the command-line interface for fileconv.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/fileconv/internal/config"
	"github.com/raphaelgruber/fileconv/internal/locator"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	envFile string

	// Loaded in PersistentPreRunE
	cfg        config.Config
	logger     = slog.Default()
	logCleanup = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fileconv",
	Short: "Convert documents and images with LibreOffice and ImageMagick",
	Long: `fileconv converts office documents, PDFs and images by driving the
LibreOffice and ImageMagick command-line tools.

Supported conversions:
  DOCX, PPTX             -> PDF
  PDF                    -> DOCX, PPTX
  JPEG, PNG, WebP, HEIC  -> JPEG, PNG, WebP`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Console logging would tear the progress view, so it is opt-in.
		var console io.Writer
		if verbose {
			cfg.LogLevel = slog.LevelDebug
			console = os.Stderr
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel, console)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := logCleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// newLocator builds a tool locator honoring configured tool paths.
func newLocator(c config.Config) *locator.Locator {
	loc := locator.New()
	loc.SetPath(locator.Office, c.OfficePath)
	loc.SetPath(locator.ImageMagick, c.ImageMagickPath)
	return loc
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "load environment variables from this file if it exists")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(toolsCmd)
}
