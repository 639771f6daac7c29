package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/filemode"
	"github.com/yamaritta/ngit/plumbing/object"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// catFileRun implements `ngit cat-file (-t|-s|-p) <object>`, mirroring git
// cat-file's three inspection modes over this library's EncodedObject seam
// instead of the porcelain `git cat-file` binary.
func catFileRun(args []string) error {
	fs := flag.NewFlagSet("cat-file", flag.ExitOnError)
	gitDir := fs.String("git-dir", "", "path to the .git directory (default: discover from cwd)")
	showType := fs.Bool("t", false, "print the object's type")
	showSize := fs.Bool("s", false, "print the object's size in bytes")
	pretty := fs.Bool("p", false, "pretty-print the object's contents")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("cat-file: exactly one object argument required")
	}
	if !*showType && !*showSize && !*pretty {
		return fmt.Errorf("cat-file: one of -t, -s, -p is required")
	}

	repo, err := openRepository(*gitDir)
	if err != nil {
		return err
	}

	h, err := repo.Resolve(fs.Arg(0))
	if err != nil {
		return err
	}

	eo, err := repo.ObjectDatabase().EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return err
	}

	switch {
	case *showType:
		fmt.Println(eo.Type())
	case *showSize:
		fmt.Println(eo.Size())
	case *pretty:
		return prettyPrint(repo.Storer(), eo)
	}
	return nil
}

func prettyPrint(s storer.EncodedObjectStorer, eo plumbing.EncodedObject) error {
	obj, err := object.DecodeObject(s, eo)
	if err != nil {
		return err
	}

	switch o := obj.(type) {
	case *object.Blob:
		r, err := o.Reader()
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(os.Stdout, r)
		return err
	case *object.Tree:
		for _, e := range o.Entries {
			typ := "blob"
			if e.Mode == filemode.Dir {
				typ = "tree"
			}
			fmt.Printf("%06s %s %s\t%s\n", e.Mode.String(), typ, e.Hash, e.Name)
		}
		return nil
	case *object.Commit:
		fmt.Printf("tree %s\n", o.TreeHash)
		for _, p := range o.ParentHashes {
			fmt.Printf("parent %s\n", p)
		}
		fmt.Printf("author %s <%s> %d\n", o.Author.Name, o.Author.Email, o.Author.When.Unix())
		fmt.Printf("committer %s <%s> %d\n", o.Committer.Name, o.Committer.Email, o.Committer.When.Unix())
		fmt.Println()
		fmt.Println(o.Message)
		return nil
	case *object.Tag:
		fmt.Printf("object %s\n", o.Target)
		fmt.Printf("type %s\n", o.TargetType)
		fmt.Printf("tag %s\n", o.Name)
		fmt.Printf("tagger %s <%s> %d\n", o.Tagger.Name, o.Tagger.Email, o.Tagger.When.Unix())
		fmt.Println()
		fmt.Println(o.Message)
		return nil
	default:
		return fmt.Errorf("cat-file: unsupported object kind %T", obj)
	}
}
