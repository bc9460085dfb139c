package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Tpanarchist/omen/config"
	"github.com/Tpanarchist/omen/invariant"
	"github.com/Tpanarchist/omen/ledger"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/pkg/logger"
	"github.com/Tpanarchist/omen/schema"
)

// runValidateCmd dispatches `omenctl validate packet|episode ...`.
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Error: validate requires a subcommand (packet|episode)")
		return 2
	}
	switch args[0] {
	case "packet":
		return runValidatePacketCmd(args[1:], stdout, stderr)
	case "episode":
		return runValidateEpisodeCmd(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Error: unrecognized validate subcommand %q\n", args[0])
		return 2
	}
}

// runValidatePacketCmd implements `omenctl validate packet <file>`
// (spec.md §6): structural validation only, no episode context.
//
// Exit codes:
//
//	0 = structurally valid
//	1 = structural violation
//	2 = usage/runtime error
func runValidatePacketCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate packet", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: omenctl validate packet <file>")
		return 2
	}
	path := cmd.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: reading %s: %v\n", path, err)
		return 2
	}
	p, err := packet.Decode(data)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL %s\n  header: %v\n", path, err)
		return 1
	}
	result := schema.Validate(p)
	if result.Ok() {
		fmt.Fprintf(stdout, "PASS %s\n", path)
		return 0
	}
	fmt.Fprintf(stdout, "FAIL %s\n", path)
	for _, d := range result.Diagnostics {
		fmt.Fprintf(stdout, "  %s: %s\n", d.FieldPath, d.Violation)
	}
	return 1
}

// runValidateEpisodeCmd implements `omenctl validate episode
// <file.jsonl> [--no-timestamp-checks]` (spec.md §6): reads a
// line-delimited stream of packet JSON objects sharing one
// correlation_id and replays it, in order, through a fresh ledger, so
// schema, FSM, and all twelve invariants run exactly as they would at
// runtime.
//
// Exit codes:
//
//	0 = every packet admitted
//	1 = some packet was rejected
//	2 = usage/runtime error
func runValidateEpisodeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate episode", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	noTimestampChecks := cmd.Bool("no-timestamp-checks", false,
		"skip INV-004 freshness and INV-007 token-expiry checks, for fixtures with frozen timestamps")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: omenctl validate episode <file.jsonl> [--no-timestamp-checks]")
		return 2
	}
	path := cmd.Arg(0)

	if *noTimestampChecks {
		invariant.SkipTimestampChecks = true
		defer func() { invariant.SkipTimestampChecks = false }()
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: opening %s: %v\n", path, err)
		return 2
	}
	defer f.Close()

	cfg := config.Default()
	log := logger.NewDefaultLogger()

	var lgr *ledger.Ledger
	ok := true
	lineNo := 0

	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scan.Scan() {
		lineNo++
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}

		p, err := packet.Decode(line)
		if err != nil {
			fmt.Fprintf(stdout, "FAIL line %d: %v\n", lineNo, err)
			ok = false
			continue
		}

		if result := schema.Validate(p); !result.Ok() {
			fmt.Fprintf(stdout, "FAIL line %d (%s): schema violations\n", lineNo, p.Kind())
			for _, d := range result.Diagnostics {
				fmt.Fprintf(stdout, "  %s: %s\n", d.FieldPath, d.Violation)
			}
			ok = false
			continue
		}

		if lgr == nil {
			lgr = ledger.Create(p.GetHeader().CorrelationID, p.GetHeader().CampaignID, cfg.LedgerBudgets(), log)
		} else if p.GetHeader().CorrelationID != lgr.CorrelationID() {
			fmt.Fprintf(stdout, "FAIL line %d: correlation_id %q does not match episode's %q\n",
				lineNo, p.GetHeader().CorrelationID, lgr.CorrelationID())
			ok = false
			continue
		}

		if err := lgr.Apply(p); err != nil {
			fmt.Fprintf(stdout, "FAIL line %d (%s): %v\n", lineNo, p.Kind(), err)
			ok = false
			continue
		}
	}
	if err := scan.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: reading %s: %v\n", path, err)
		return 2
	}

	if lgr == nil {
		fmt.Fprintf(stdout, "FAIL %s: no packets found\n", path)
		return 1
	}
	if !ok {
		fmt.Fprintf(stdout, "episode final state: %s\n", lgr.CurrentState())
		return 1
	}
	fmt.Fprintf(stdout, "PASS %s (%d packets, final state %s)\n", path, lineNo, lgr.CurrentState())
	return 0
}
