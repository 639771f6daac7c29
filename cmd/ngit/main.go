// Command ngit is a small inspector CLI exercising the library end to end,
// in the spirit of the teacher's cli/go-git: a thin command-dispatch shell
// (main.go) over subcommands that each open a Repository and call straight
// into the package this SPEC_FULL.md §6 names (storage, revision,
// plumbing/object). It has no porcelain (add/commit/merge) and no network
// transport, matching spec.md §1's Non-goals.
package main

import (
	"fmt"
	"os"
)

const usage = `Usage:
	ngit <command> [arguments]

Available commands:
	cat-file      print or inspect the contents of a repository object
	rev-parse     resolve a revision expression to an object id
	for-each-ref  list references matching an optional prefix
	update-ref    set, delete, or verify the value of a reference
`

var commands = map[string]func([]string) error{
	"cat-file":     catFileRun,
	"rev-parse":    revParseRun,
	"for-each-ref": forEachRefRun,
	"update-ref":   updateRefRun,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "ngit: unknown command %q\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err := cmd(os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "ngit:", err)
		os.Exit(1)
	}
}
