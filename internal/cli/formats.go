package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/fileconv/internal/format"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats [file]",
	Short: "Show supported conversions",
	Long: `Show the conversion matrix, or the formats a given file can be converted to.

Examples:
  fileconv formats              # Show all supported conversions
  fileconv formats photo.heic   # Show targets for photo.heic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormats,
}

func runFormats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		src := format.Detect(args[0])
		if src == format.Unknown {
			return fmt.Errorf("unsupported file type: %s", args[0])
		}
		fmt.Fprintf(out, "%s (%s) can be converted to: %s\n", args[0], src, joinFormats(format.CompatibleTargets(src)))
		return nil
	}

	fmt.Fprintf(out, "%-8s %s\n", "SOURCE", "TARGETS")
	fmt.Fprintln(out, "------------------------")
	for _, src := range format.All() {
		fmt.Fprintf(out, "%-8s %s\n", src, joinFormats(format.CompatibleTargets(src)))
	}
	return nil
}

func joinFormats(formats []format.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
