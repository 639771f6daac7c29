package main

import (
	"os"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/yamaritta/ngit/cache"
	"github.com/yamaritta/ngit/storage"
)

// openRepository opens the repository at gitDir, or discovers one by
// ascending from the current directory when gitDir is empty (spec.md §6).
// Every subcommand shares this so --git-dir means the same thing
// everywhere, the way every teacher porcelain command shares one
// repository-open path.
func openRepository(gitDir string) (*storage.Repository, error) {
	opts := cache.DefaultOptions()
	if gitDir != "" {
		return storage.Open(osfs.New(gitDir), opts)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return storage.Discover(cwd, opts)
}
