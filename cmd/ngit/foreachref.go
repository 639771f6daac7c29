package main

import (
	"flag"
	"fmt"
	"sort"

	"github.com/yamaritta/ngit/plumbing"
)

// forEachRefRun implements `ngit for-each-ref [prefix]`: list every
// reference (loose and packed, spec.md §4.7) whose name has the given
// prefix (default "refs/"), sorted by name, each line "<hash> <type>
// <name>" in the manner of git for-each-ref's default format.
func forEachRefRun(args []string) error {
	fs := flag.NewFlagSet("for-each-ref", flag.ExitOnError)
	gitDir := fs.String("git-dir", "", "path to the .git directory (default: discover from cwd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prefix := "refs/"
	if fs.NArg() > 0 {
		prefix = fs.Arg(0)
	}

	repo, err := openRepository(*gitDir)
	if err != nil {
		return err
	}

	refs, err := repo.RefDatabase().GetRefs(prefix)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		ref := refs[plumbing.ReferenceName(name)]
		resolved, err := repo.RefDatabase().Resolve(ref.Name())
		if err != nil {
			fmt.Printf("%s %s %s\n", plumbing.ZeroHash, "unknown", name)
			continue
		}

		typ := "unknown"
		if eo, err := repo.ObjectDatabase().EncodedObject(plumbing.AnyObject, resolved.Hash()); err == nil {
			typ = eo.Type().String()
		}
		fmt.Printf("%s %s %s\n", resolved.Hash(), typ, name)
	}
	return nil
}
