// stuntgen generates dispatch-table test doubles for Go interfaces.
// Install it with `go install github.com/stuntkit/stunt/stuntgen@latest` and
// add a `//go:generate stuntgen <Interface>` comment next to the interface.
// By default the double is named <Interface>Double and written to
// <interface>_double.go in the current package; --name and --out override
// those.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/akedrou/textdiff"

	"github.com/stuntkit/stunt/stuntgen/run"
)

func main() {
	if err := generate(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generate(args []string) error {
	flags := flag.NewFlagSet("stuntgen", flag.ContinueOnError)
	name := flags.String("name", "", "name of the generated double type")
	out := flags.String("out", "", "output file")
	dir := flags.String("dir", ".", "package directory to scan")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}

	if flags.NArg() != 1 {
		//nolint:err113 // usage error with dynamic context
		return fmt.Errorf("usage: stuntgen [flags] <InterfaceName>")
	}

	ifaceName := flags.Arg(0)

	doubleName := *name
	if doubleName == "" {
		doubleName = ifaceName + "Double"
	}

	outFile := *out
	if outFile == "" {
		outFile = strings.ToLower(ifaceName) + "_double.go"
	}

	files, pkgName, err := run.LoadPackage(*dir)
	if err != nil {
		return err
	}

	iface, err := run.FindInterface(files, ifaceName)
	if err != nil {
		return err
	}

	generated, err := run.Generate(pkgName, ifaceName, doubleName, iface, run.BuildImportMap(files))
	if err != nil {
		return err
	}

	return writeIfChanged(outFile, generated)
}

// writeIfChanged leaves an up-to-date file untouched and prints a unified
// diff when regenerating over stale output.
func writeIfChanged(path, generated string) error {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == generated {
		return nil
	}

	if err == nil {
		diff := textdiff.Unified(path+" (current)", path+" (generated)", string(existing), generated)
		if diff != "" {
			fmt.Printf("%s\n", diff)
		}
	}

	const filePerm = 0o644

	if err := os.WriteFile(path, []byte(generated), filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
