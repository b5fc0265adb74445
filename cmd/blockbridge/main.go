// blockbridge runs flowgraphs described by config files and serves
// environments to remote processes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	_ "github.com/chazu/blockbridge/blocks"
	_ "github.com/chazu/blockbridge/grpcenv"
)

var log = commonlog.GetLogger("blockbridge")

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = errors only, 2 = info, 3 = debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: blockbridge [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run <flowgraph>          Run a flowgraph (.toml, .yaml)\n")
		fmt.Fprintf(os.Stderr, "  serve                    Serve the managed environment over Connect\n")
		fmt.Fprintf(os.Stderr, "  call <name> <method>     Call a method on a remote object\n")
		fmt.Fprintf(os.Stderr, "  blocks                   List registered block factories\n")
		fmt.Fprintf(os.Stderr, "  dtype <markup>...        Describe data types\n")
		fmt.Fprintf(os.Stderr, "  stats <db> [run]         Show recorded work statistics\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  blockbridge run graph.toml\n")
		fmt.Fprintf(os.Stderr, "  blockbridge -v 2 run -metrics :9090 graph.yaml\n")
		fmt.Fprintf(os.Stderr, "  blockbridge serve -addr :4567\n")
		fmt.Fprintf(os.Stderr, "  blockbridge dtype float32 \"complex_float64, 4\"\n")
	}
	flag.Parse()
	commonlog.Configure(*verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = handleRunCommand(rest)
	case "serve":
		err = handleServeCommand(rest)
	case "call":
		err = handleCallCommand(rest)
	case "blocks":
		err = handleBlocksCommand(rest)
	case "dtype":
		err = handleDTypeCommand(rest)
	case "stats":
		err = handleStatsCommand(rest)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
