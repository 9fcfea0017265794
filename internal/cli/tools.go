package cli

import (
	"fmt"

	"github.com/raphaelgruber/fileconv/internal/locator"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the external converters fileconv will use",
	Long: `Show where LibreOffice and ImageMagick were found.

Paths set in the config file or FILECONV_OFFICE_PATH / FILECONV_IMAGEMAGICK_PATH
take precedence over discovery.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	loc := newLocator(cfg)

	missing := 0
	for _, tool := range locator.Tools {
		path, ok := loc.Locate(tool)
		if !ok {
			missing++
			path = defaultTheme.errorStyle().Render("not found")
		}
		fmt.Fprintf(out, "%-12s %s\n", tool, path)
	}

	if missing > 0 {
		logger.Debug("tools missing", "count", missing)
	}
	return nil
}
