// proxygen writes typed wrappers that implement Go interfaces by
// dispatching every method through a proxy.Proxy.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/blockbridge/proxygen"
)

func main() {
	types := flag.String("types", "", "Comma-separated interface names to wrap")
	output := flag.String("output", "", "Output file (default <package>_proxy.go)")
	dir := flag.String("dir", ".", "Package directory")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: proxygen -types A,B [options]\n\n")
		fmt.Fprintf(os.Stderr, "Generates proxy-backed implementations of the named interfaces.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  //go:generate go run ../cmd/proxygen -types nativeInput,nativeOutput -output native_gen.go\n")
	}
	flag.Parse()

	if *types == "" {
		flag.Usage()
		os.Exit(2)
	}
	var names []string
	for _, n := range strings.Split(*types, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	model, err := proxygen.Introspect(*dir, names)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	code, err := proxygen.Generate(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = model.Name + "_proxy.go"
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(*dir, out)
	}
	if err := os.WriteFile(out, code, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Wrote %d interfaces to %s\n", len(model.Interfaces), out)
	}
}
