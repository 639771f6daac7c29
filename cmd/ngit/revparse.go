package main

import (
	"flag"
	"fmt"
)

// revParseRun implements `ngit rev-parse <expr>...`: resolve one or more
// revision expressions (spec.md §4.9's grammar) and print the resulting
// object id, one per line, in the order given.
func revParseRun(args []string) error {
	fs := flag.NewFlagSet("rev-parse", flag.ExitOnError)
	gitDir := fs.String("git-dir", "", "path to the .git directory (default: discover from cwd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("rev-parse: at least one revision expression required")
	}

	repo, err := openRepository(*gitDir)
	if err != nil {
		return err
	}

	for _, expr := range fs.Args() {
		h, err := repo.Resolve(expr)
		if err != nil {
			return fmt.Errorf("%s: %w", expr, err)
		}
		fmt.Println(h)
	}
	return nil
}
