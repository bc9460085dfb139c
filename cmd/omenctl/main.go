// Command omenctl is the protocol runtime's reference CLI: schema-only
// packet validation, full schema+FSM+invariant episode validation, and
// template compilation to an episode JSONL plan (spec.md §6). It is a
// thin wrapper over the library packages (schema, ledger, template) -
// no validation or compilation logic lives here.
//
// Grounded on Mindburn-Labs-helm's core/cmd/helm/main.go: a
// testable Run(args, stdout, stderr) int entrypoint dispatching on
// args[1] to one runXxxCmd per subcommand, each building its own
// flag.NewFlagSet rather than pulling in a CLI framework - the same
// shape gomind's own core/cmd/example/main.go uses for its single
// func main(), scaled to three flat subcommands.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint used by tests; main() only supplies the real
// os.Args/os.Stdout/os.Stderr.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "compile":
		return runCompileCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "omenctl: unrecognized command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `omenctl - reference CLI for the packet-protocol runtime

Usage:
  omenctl validate packet <file>                 run the schema validator over one packet
  omenctl validate episode <file.jsonl> [opts]    run schema+FSM+invariant validation over an episode log
  omenctl compile <template> [correlation_id]     compile a canonical template into an episode plan (JSONL)

Run "omenctl <command> -h" for command-specific options.
`)
}
