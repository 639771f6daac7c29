package main

import (
	"flag"
	"fmt"

	"github.com/yamaritta/ngit/plumbing"
)

// updateRefRun implements `ngit update-ref [-d] [-f] [-m msg] <ref> <new>
// [<old>]`, the CLI surface over storage/dotgit.RefUpdate (spec.md §4.7):
// set a reference, optionally guarded by an expected old value, or delete
// one outright. <new> and <old> are themselves revision expressions, so a
// caller can write `update-ref refs/heads/topic HEAD~2`.
func updateRefRun(args []string) error {
	fs := flag.NewFlagSet("update-ref", flag.ExitOnError)
	gitDir := fs.String("git-dir", "", "path to the .git directory (default: discover from cwd)")
	del := fs.Bool("d", false, "delete the reference instead of setting it")
	force := fs.Bool("f", false, "allow a non-fast-forward update")
	message := fs.String("m", "", "reflog message")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := openRepository(*gitDir)
	if err != nil {
		return err
	}
	refdb := repo.RefDatabase()

	if *del {
		if fs.NArg() != 1 {
			return fmt.Errorf("update-ref -d: exactly one reference name required")
		}
		return refdb.RemoveReference(plumbing.ReferenceName(fs.Arg(0)))
	}

	if fs.NArg() < 2 || fs.NArg() > 3 {
		return fmt.Errorf("update-ref: <ref> <new-value> [<old-value>] required")
	}

	name := plumbing.ReferenceName(fs.Arg(0))
	newHash, err := repo.Resolve(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("new value %q: %w", fs.Arg(1), err)
	}

	update := refdb.NewUpdate(name)
	update.SetNewObjectID(newHash)
	update.SetForceUpdate(*force)
	update.SetRefLogMessage(*message)

	if fs.NArg() == 3 {
		oldHash, err := repo.Resolve(fs.Arg(2))
		if err != nil {
			return fmt.Errorf("old value %q: %w", fs.Arg(2), err)
		}
		update.SetExpectedOldObjectID(oldHash)
	}

	result, err := update.Update()
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}
