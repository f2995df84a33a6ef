// Command trackrecon reconciles the compound tracking sheet against assay
// run dates and writes the reconciliation workbook.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trackrecon/internal/pipeline"
	"trackrecon/internal/results"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	file         string
	configPath   string
	pushWorklist bool
	verbose      bool
	timeout      time.Duration
}

// cli returns 0 on success, 1 on a failed run and 2 on a usage error.
func cli(args []string, stdout, stderr io.Writer) int {
	code := 0
	cmd := newRootCommand(stdout, stderr, &code)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		_, _ = fmt.Fprintln(stderr, cmd.UsageString())
		return 2
	}
	return code
}

func newRootCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "trackrecon [flags] SAVE_FILE",
		Short: "Reconcile compound shipments against assay run dates",
		Long: `Reads the compound tracking sheet (Google Sheets by default, or a local
file with --file), joins it with assay run dates from the results database
and writes a workbook named SAVE_FILE_APPVersion_<version>.xlsx with the
updated tracking, the pivoted tracking and the received-but-no-data worklist.

In Google Sheets mode the worklist is also written back to the tracking
spreadsheet unless --push-worklist=false is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = execute(cmd.Context(), opts, args[0], stdout, stderr)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the tracking sheet from a local .csv, .tsv or .xlsx file")
	f.StringVar(&opts.configPath, "config", os.Getenv("TRACKRECON_CONFIG"), "YAML configuration file")
	f.BoolVar(&opts.pushWorklist, "push-worklist", true, "write the worklist back to Google Sheets (sheets mode only)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.DurationVar(&opts.timeout, "timeout", 0, "abort the run after this long (0 disables)")
	return cmd
}

func execute(ctx context.Context, opts options, saveFile string, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	app, err := wire(ctx, opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "trackrecon: %v\n", err)
		return 1
	}
	defer app.close()

	res, runErr := app.pipeline.Run(ctx, pipeline.Request{SaveFile: saveFile, PushWorklist: opts.pushWorklist})
	app.finish(ctx, runErr == nil)
	if runErr != nil {
		var connErr *results.ConnectionError
		var stageErr *pipeline.RunError
		switch {
		case errors.As(runErr, &connErr), errors.As(runErr, &stageErr):
			_, _ = fmt.Fprintln(stderr, runErr.Error())
		default:
			_, _ = fmt.Fprintf(stderr, "trackrecon: %v\n", runErr)
		}
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "Program done!! Result file is %s\n", res.Saved.URL)
	return 0
}
