package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

type cliOptions struct {
	configPath    string
	fqn           string
	out           string
	dateTime      string
	manifest      bool
	watch         bool
	list          bool
	extract       string
	history       bool
	historyWindow time.Duration
	historyFormat string
	historyLimit  int
	verbose       bool
	version       bool
	args          []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("modpack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: modpack [flags] <script.py>...")
		fmt.Fprintln(stderr, "       modpack -list <archive.zip>...")
		fmt.Fprintln(stderr, "       modpack -extract <dir> <archive.zip>")
		fmt.Fprintln(stderr, "       modpack -history [-fqn name]")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default ./modpack.toml when present)")
	fs.StringVar(&opts.fqn, "fqn", "", "Entry module name (single script only; derived from the path by default)")
	fs.StringVar(&opts.out, "out", ".", "Output archive (single script ending in .zip) or directory")
	fs.StringVar(&opts.dateTime, "date-time", "", "Fixed archive timestamp (\"Y,M,D,h,m,s\", RFC3339 or YYYY-MM-DD)")
	fs.BoolVar(&opts.manifest, "manifest", false, "Write a YAML module list next to each archive")
	fs.BoolVar(&opts.watch, "watch", false, "Re-assemble when module sources change")
	fs.BoolVar(&opts.list, "list", false, "List the entries of existing archives and exit")
	fs.StringVar(&opts.extract, "extract", "", "Extract an existing archive into this directory and exit")
	fs.BoolVar(&opts.history, "history", false, "Print the recorded assembly trend and exit")
	fs.DurationVar(&opts.historyWindow, "history-window", 24*time.Hour, "Moving-window duration for trend averages")
	fs.StringVar(&opts.historyFormat, "history-format", "yaml", "Trend output format (yaml or tsv)")
	fs.IntVar(&opts.historyLimit, "history-limit", 0, "Only evaluate the newest N assemblies")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	opts.args = fs.Args()
	return opts, validateOptions(opts)
}

func validateOptions(opts cliOptions) error {
	if opts.version {
		return nil
	}
	modes := 0
	for _, on := range []bool{opts.list, opts.extract != "", opts.history, opts.watch} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("-list, -extract, -history and -watch cannot be combined")
	}

	switch {
	case opts.history:
		if len(opts.args) > 0 {
			return fmt.Errorf("-history takes no arguments")
		}
		switch strings.ToLower(opts.historyFormat) {
		case "yaml", "tsv":
		default:
			return fmt.Errorf("unsupported -history-format %q", opts.historyFormat)
		}
		return nil
	case opts.list:
		if len(opts.args) == 0 {
			return fmt.Errorf("-list requires at least one archive")
		}
		return nil
	case opts.extract != "":
		if len(opts.args) != 1 {
			return fmt.Errorf("-extract requires exactly one archive")
		}
		return nil
	}

	if len(opts.args) == 0 {
		return fmt.Errorf("at least one entry script is required")
	}
	if opts.fqn != "" && len(opts.args) > 1 {
		return fmt.Errorf("-fqn can only be used with a single script")
	}
	if strings.HasSuffix(opts.out, ".zip") && len(opts.args) > 1 {
		return fmt.Errorf("-out must be a directory when assembling several scripts")
	}
	return nil
}
