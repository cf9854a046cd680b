// Command axisreplay runs a motion script through the axis constraint on a
// virtual clock and prints what happened to every event.
//
// Usage:
//
//	axisreplay [flags] <script.yaml|script.json|->
//
// A script holds a constrain block and a list of steps:
//
//	config:
//	  threshold: 5
//	  sticky: true
//	  release_after_ms: 100
//	steps:
//	  - {at_ms: 0, axis: x, value: 6}
//	  - {at_ms: 150, axis: y, value: 6}
//
// Rows marked with * followed an idle release.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"axisconstrain/internal/constrain"
	"axisconstrain/internal/logging"
	"axisconstrain/internal/replay"
)

var version = "dev"

func main() {
	format := flag.String("format", "text", "output format: text, json")
	verbose := flag.Bool("verbose", false, "log lock transitions to stderr")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "axisreplay - replay a motion script\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <script.yaml|script.json|->\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("axisreplay %s\n", version)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *format, *verbose, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, format string, verbose bool, stdin io.Reader, stdout io.Writer) error {
	var (
		script *replay.Script
		err    error
	)
	if path == "-" {
		data, rerr := io.ReadAll(stdin)
		if rerr != nil {
			return fmt.Errorf("read stdin: %w", rerr)
		}
		script, err = replay.ParseScript(data, "yaml")
	} else {
		script, err = replay.LoadScript(path)
	}
	if err != nil {
		return err
	}

	var opts []constrain.Option
	if verbose {
		logger, lerr := logging.New(&logging.Config{Level: logging.LevelDebug, Output: "stderr", Component: "replay"})
		if lerr != nil {
			return lerr
		}
		opts = append(opts, constrain.WithLogger(logger.Logger))
	}

	results, err := replay.Run(script, opts...)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return replay.WriteJSON(stdout, results)
	case "text":
		return replay.WriteText(stdout, results)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
