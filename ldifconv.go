package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/maxpert/ldifconv/cfg"
	"github.com/maxpert/ldifconv/convert"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const version = "1.0.0"

const (
	exitOK = iota
	exitUsage
	exitFailed
)

// env is what a command may touch besides its arguments.
type env struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], env{
		fs:     afero.NewOsFs(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}))
}

func run(args []string, e env) int {
	if len(args) < 1 {
		printUsage(e.stderr)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "convert":
		return runConvert(rest, e)
	case "show-dn":
		return runShowDN(rest, e)
	case "version":
		fmt.Fprintf(e.stdout, "ldifconv version %s\n", version)
		return exitOK
	case "help", "-h", "--help":
		printUsage(e.stdout)
		return exitOK
	default:
		fmt.Fprintf(e.stderr, "Unknown command: %s\n", cmd)
		printUsage(e.stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ldifconv - LDIF export cleanup and conversion

Usage:
  ldifconv <command> [options]

Commands:
  convert   Convert an LDIF export using a settings document
  show-dn   Print the records with the given dns from an LDIF file
  version   Print version
  help      Show this help

Convert Options:
  --config      Settings document, .yml/.yaml or .toml (default: settings.yml)
  --input       Input file, overrides input_file ("-" for stdin)
  --output      Output file, overrides output_file ("-" for stdout)
  --log         Audit log file, overrides log_file
  --log-format  Console log format: console|json
  --verbose     Debug console logging, mirrors the audit log

Show-dn Options:
  --glob        Treat every dn as a glob pattern ('*' within an RDN, '**' across)

Examples:
  ldifconv convert --config settings.yml
  ldifconv convert --config settings.toml --input export.ldif.gz --output import.ldif
  ldifconv show-dn export.ldif "uid=jdoe,ou=People,dc=example"
  ldifconv show-dn --glob export.ldif "uid=*,ou=People,dc=example"
  cat dns.txt | ldifconv show-dn export.ldif -`)
}

// newLogger builds the console logger. Every event carries the run id.
func newLogger(w io.Writer, format string, verbose bool, runID string) zerolog.Logger {
	writer := w
	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: w}
	}
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	if verbose {
		return logger.Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}

func runConvert(args []string, e env) int {
	var (
		configPath string
		overrides  cfg.Overrides
	)

	flags := flag.NewFlagSet("convert", flag.ContinueOnError)
	flags.SetOutput(e.stderr)
	flags.StringVar(&configPath, "config", "settings.yml", "Settings document (.yml, .yaml or .toml)")
	flags.StringVar(&overrides.InputFile, "input", "", "Input LDIF file, - for stdin")
	flags.StringVar(&overrides.OutputFile, "output", "", "Output LDIF file, - for stdout")
	flags.StringVar(&overrides.LogFile, "log", "", "Audit log file")
	flags.StringVar(&overrides.ConsoleFormat, "log-format", "", "Console log format: console|json")
	flags.BoolVar(&overrides.Verbose, "verbose", false, "Debug console logging")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	c, err := cfg.Load(e.fs, configPath)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error loading configuration: %v\n", err)
		return exitUsage
	}
	c.Apply(overrides)

	if err := c.Validate(); err != nil {
		fmt.Fprintf(e.stderr, "Invalid configuration: %v\n", err)
		return exitUsage
	}

	runID := uuid.NewString()
	log := newLogger(e.stderr, c.Logging.Format, c.Logging.Verbose, runID)
	log.Info().Str("config", configPath).Msg("ldifconv " + version)

	conv := convert.New(c, e.fs, log, convert.Options{
		RunID:   runID,
		Stdin:   e.stdin,
		Stdout:  e.stdout,
		Summary: e.stderr,
	})
	if _, err := conv.Run(); err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		return exitFailed
	}
	return exitOK
}

func runShowDN(args []string, e env) int {
	var useGlob bool

	flags := flag.NewFlagSet("show-dn", flag.ContinueOnError)
	flags.SetOutput(e.stderr)
	flags.BoolVar(&useGlob, "glob", false, "Treat dns as glob patterns")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() < 2 {
		fmt.Fprintln(e.stderr, "Usage: ldifconv show-dn [--glob] <source> <dn>... | -")
		return exitUsage
	}

	source, dns := flags.Arg(0), flags.Args()[1:]
	if dns[0] == convert.StdStream {
		var err error
		if dns, err = readLines(e.stdin); err != nil {
			fmt.Fprintf(e.stderr, "Error reading dns: %v\n", err)
			return exitFailed
		}
	}

	finder, err := convert.NewFinder(dns, useGlob)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}

	in, err := convert.Open(e.fs, source, e.stdin)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailed
	}
	defer in.Close()

	out := bufio.NewWriter(e.stdout)
	if _, err := finder.Find(in, out); err != nil {
		fmt.Fprintf(e.stderr, "Error reading %s: %v\n", source, err)
		return exitFailed
	}
	if err := out.Flush(); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailed
	}

	for _, dn := range finder.Missing() {
		fmt.Fprintf(e.stderr, "Not found: %s\n", dn)
	}
	return exitOK
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
