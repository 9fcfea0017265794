package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/fileconv/internal/converter"
	"github.com/raphaelgruber/fileconv/internal/format"
	"github.com/raphaelgruber/fileconv/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	convertTo       string
	convertOutDir   string
	convertParallel int
	convertIsolate  bool
	convertOffice   string
	convertMagick   string
	convertPlain    bool
	convertMetrics  string
)

var convertCmd = &cobra.Command{
	Use:   "convert <files...>",
	Short: "Convert files to another format",
	Long: `Convert one or more files to the target format.

Documents are converted with LibreOffice, images with ImageMagick. Files
that do not exist or cannot be converted are reported without stopping
the rest of the batch. Press Ctrl+C to cancel all conversions.

Examples:
  fileconv convert report.docx --to pdf
  fileconv convert slides.pdf -c pptx --out-dir ./out
  fileconv convert *.heic -c jpg --parallel 4
  fileconv convert a.docx b.docx --to pdf --parallel 2 --isolate-profile`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "c", "", "target format (pdf, docx, pptx, jpg, png, webp)")
	convertCmd.Flags().StringVarP(&convertOutDir, "out-dir", "o", "", "directory for converted files (default: next to input)")
	convertCmd.Flags().IntVarP(&convertParallel, "parallel", "p", 1, "max conversions running at once")
	convertCmd.Flags().BoolVar(&convertIsolate, "isolate-profile", false, "use a separate LibreOffice profile per conversion")
	convertCmd.Flags().StringVar(&convertOffice, "office", "", "path to the LibreOffice soffice executable")
	convertCmd.Flags().StringVar(&convertMagick, "magick", "", "path to the ImageMagick magick executable")
	convertCmd.Flags().BoolVar(&convertPlain, "plain", false, "print one line per event instead of the progress view")
	convertCmd.Flags().StringVar(&convertMetrics, "metrics-file", "", "write Prometheus metrics to this file when done")
	_ = convertCmd.MarkFlagRequired("to")
}

func runConvert(cmd *cobra.Command, args []string) error {
	target := format.Parse(convertTo)
	if target == format.Unknown {
		return fmt.Errorf("unknown target format %q", convertTo)
	}
	applyConvertFlags(cmd)

	inputs := absPaths(args)
	collector := metrics.NewCollector()
	exporter := metrics.NewExporter()

	var (
		b   *batch
		err error
	)
	if !convertPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		b, err = convertInteractive(inputs, target, collector, exporter)
	} else {
		b, err = convertLines(cmd, inputs, target, collector, exporter)
	}
	if err != nil {
		return err
	}

	logSummary(collector.Snapshot())
	if cfg.MetricsFile != "" {
		if err := exporter.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	return b.err()
}

// applyConvertFlags overlays explicitly set flags on the loaded config.
func applyConvertFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("out-dir") {
		cfg.OutputDir = convertOutDir
	}
	if flags.Changed("parallel") {
		cfg.MaxParallel = convertParallel
	}
	if flags.Changed("isolate-profile") {
		cfg.IsolateProfile = convertIsolate
	}
	if flags.Changed("office") {
		cfg.OfficePath = convertOffice
	}
	if flags.Changed("magick") {
		cfg.ImageMagickPath = convertMagick
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = convertMetrics
	}
}

func newConverter(sink converter.Sink) *converter.Converter {
	return converter.New(converter.Config{
		OutputDir:      cfg.OutputDir,
		MaxParallel:    cfg.MaxParallel,
		IsolateProfile: cfg.IsolateProfile,
		Resolver: converter.ResolverPolicy{
			InitialDelay: cfg.Resolver.InitialDelay,
			Interval:     cfg.Resolver.Interval,
			MaxRetries:   cfg.Resolver.MaxRetries,
		},
	}, sink, newLocator(cfg), converter.WithLogger(logger))
}

func convertInteractive(inputs []string, target format.Format, sinks ...converter.Sink) (*batch, error) {
	ui := &programSink{}
	conv := newConverter(append(converter.MultiSink{ui}, sinks...))
	defer conv.Close()

	p := tea.NewProgram(newProgressModel(conv, target.String(), len(inputs)))
	ui.p = p

	for _, in := range inputs {
		conv.Submit(in, target)
	}

	b, aborted, err := runProgress(p)
	if err != nil {
		return nil, err
	}
	if aborted {
		logger.Warn("stopped waiting for running conversions")
	}
	return b, nil
}

func convertLines(cmd *cobra.Command, inputs []string, target format.Format, sinks ...converter.Sink) (*batch, error) {
	out := newPlainSink(cmd.OutOrStdout(), len(inputs))
	conv := newConverter(append(converter.MultiSink{out}, sinks...))
	defer conv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, in := range inputs {
		conv.Submit(in, target)
	}

	select {
	case <-out.done:
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "cancelling...")
		conv.CancelAll()
		<-out.done
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", out.batch.totals())
	return out.batch, nil
}

func absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out[i] = p
	}
	return out
}

func logSummary(s metrics.Snapshot) {
	attrs := []any{"started", s.Started, "rejected", s.Rejected, "dropped", s.Dropped, "elapsed_s", s.UptimeSeconds}
	if s.Succeeded != nil {
		attrs = append(attrs, "succeeded", s.Succeeded.Count, "avg_ms", s.Succeeded.AvgTimeMs, "max_ms", s.Succeeded.MaxTimeMs)
	}
	if s.Failed != nil {
		attrs = append(attrs, "failed", s.Failed.Count)
	}
	if s.Cancelled != nil {
		attrs = append(attrs, "cancelled", s.Cancelled.Count)
	}
	logger.Info("conversion batch finished", attrs...)
}
