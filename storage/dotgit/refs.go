package dotgit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// readLooseRef reads a single loose reference file (HEAD or refs/**).
// Grounded on the teacher's internal/dotgit.readReferenceFile: the whole
// file is one line, trimmed.
func (d *RefDatabase) readLooseRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	f, err := d.fs.Open(string(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	ref := plumbing.NewReferenceFromStrings(string(name), string(b))
	ref.SetStorage(plumbing.LooseStorage)
	return ref, nil
}

// readPackedRefs parses packed-refs in full (spec.md §4.7: "# pack-refs
// with: peeled" header, "id SP name" lines, "^id" peeled-target lines for
// the preceding annotated tag). Grounded on the teacher's
// internal/dotgit.addRefsFromPackedRefs/processLine.
func (d *RefDatabase) readPackedRefs() ([]*plumbing.Reference, error) {
	f, err := d.fs.Open(packedRefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var refs []*plumbing.Reference
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}

		switch line[0] {
		case '#':
			continue
		case '^':
			if len(refs) == 0 {
				return nil, ErrPackedRefsBadFormat
			}
			peeled, err := plumbing.FromHexLoose(line[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: bad peeled id", ErrPackedRefsBadFormat)
			}
			refs[len(refs)-1].SetPeeled(peeled)
		default:
			parts := strings.SplitN(line, " ", 2)
			if len(parts) != 2 {
				return nil, ErrPackedRefsBadFormat
			}
			ref := plumbing.NewReferenceFromStrings(parts[1], parts[0])
			ref.SetStorage(plumbing.PackedStorage)
			refs = append(refs, ref)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// writePackedRefs rewrites the whole packed-refs file from refs, under the
// caller's lock (spec.md §4.7: "mutation is a whole-file rewrite under a
// lock").
func (d *RefDatabase) writePackedRefs(refs []*plumbing.Reference) error {
	f, err := d.fs.Create(packedRefsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# pack-refs with: peeled fully-peeled sorted"); err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s %s\n", ref.Hash().String(), ref.Name()); err != nil {
			return err
		}
		if peeled, ok := ref.Peeled(); ok {
			if _, err := fmt.Fprintf(f, "^%s\n", peeled.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reference implements storer.ReferenceStorer: loose files take precedence
// over packed-refs for the same name (spec.md §4.7).
func (d *RefDatabase) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	if ref, err := d.readLooseRef(name); err == nil {
		return ref, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	packed, err := d.readPackedRefs()
	if err != nil {
		return nil, err
	}
	for _, ref := range packed {
		if ref.Name() == name {
			return ref, nil
		}
	}

	return nil, plumbing.ErrReferenceNotFound
}

// getRefSearchOrder is the short-name resolution order from spec.md §4.7.
func getRefSearchOrder(short string) []plumbing.ReferenceName {
	return []plumbing.ReferenceName{
		plumbing.ReferenceName(short),
		plumbing.ReferenceName("refs/" + short),
		plumbing.ReferenceName("refs/tags/" + short),
		plumbing.ReferenceName("refs/heads/" + short),
		plumbing.ReferenceName("refs/remotes/" + short),
		plumbing.ReferenceName("refs/remotes/" + short + "/HEAD"),
	}
}

// GetRef resolves a short name using the search order defined by spec.md
// §4.7.
func (d *RefDatabase) GetRef(short string) (*plumbing.Reference, error) {
	var lastErr error
	for _, name := range getRefSearchOrder(short) {
		ref, err := d.Reference(name)
		if err == nil {
			return ref, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = plumbing.ErrReferenceNotFound
	}
	return nil, lastErr
}

// GetRefs returns every reference (loose and packed, deduplicated with
// loose winning) whose name has the given prefix.
func (d *RefDatabase) GetRefs(prefix string) (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	out := make(map[plumbing.ReferenceName]*plumbing.Reference)

	packed, err := d.readPackedRefs()
	if err != nil {
		return nil, err
	}
	for _, ref := range packed {
		if strings.HasPrefix(string(ref.Name()), prefix) {
			out[ref.Name()] = ref
		}
	}

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := d.fs.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			full := d.fs.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if !strings.HasPrefix(full, prefix) {
				continue
			}
			ref, err := d.readLooseRef(plumbing.ReferenceName(full))
			if err != nil {
				return err
			}
			out[ref.Name()] = ref
		}
		return nil
	}
	if err := walk(refsPath); err != nil {
		return nil, err
	}

	return out, nil
}

// IterReferences implements storer.ReferenceStorer.
func (d *RefDatabase) IterReferences() (storer.ReferenceIter, error) {
	refs, err := d.GetRefs("")
	if err != nil {
		return nil, err
	}
	series := make([]*plumbing.Reference, 0, len(refs))
	for _, ref := range refs {
		series = append(series, ref)
	}
	return storer.NewReferenceSliceIter(series), nil
}

// CountLooseRefs implements storer.ReferenceStorer.
func (d *RefDatabase) CountLooseRefs() (int, error) {
	count := 0
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := d.fs.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			full := d.fs.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			count++
		}
		return nil
	}
	if err := walk(refsPath); err != nil {
		return 0, err
	}
	return count, nil
}

// PackRefs rewrites every loose ref into packed-refs and removes the loose
// files, implementing storer.ReferenceStorer.PackRefs.
func (d *RefDatabase) PackRefs() error {
	loose, err := d.GetRefs(refsPath)
	if err != nil {
		return err
	}
	packed, err := d.readPackedRefs()
	if err != nil {
		return err
	}

	merged := make(map[plumbing.ReferenceName]*plumbing.Reference, len(loose)+len(packed))
	for _, ref := range packed {
		merged[ref.Name()] = ref
	}
	for _, ref := range loose {
		merged[ref.Name()] = ref
	}

	all := make([]*plumbing.Reference, 0, len(merged))
	for _, ref := range merged {
		all = append(all, ref)
	}
	if err := d.writePackedRefs(all); err != nil {
		return err
	}

	for name := range loose {
		if err := d.fs.Remove(string(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// resolveSymbolic follows a chain of symbolic references up to
// maxSymbolicHops, returning the final direct reference (spec.md §4.7).
func (d *RefDatabase) resolveSymbolic(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	seen := make(map[plumbing.ReferenceName]bool)
	for hop := 0; ; hop++ {
		if hop >= maxSymbolicHops {
			return nil, ErrSymRefCycle
		}
		if seen[name] {
			return nil, ErrSymRefCycle
		}
		seen[name] = true

		ref, err := d.Reference(name)
		if err != nil {
			return nil, err
		}
		if ref.Type() == plumbing.HashReference {
			return ref, nil
		}
		name = ref.Target()
	}
}

// Resolve returns the direct reference name refers to, following symbolic
// indirection (e.g. HEAD -> refs/heads/master -> a commit id).
func (d *RefDatabase) Resolve(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return d.resolveSymbolic(name)
}

// appendReflog appends one line to logs/<name>, creating parent
// directories as needed. Format: "<old> <new> <committer> <unix> <tz>\t<msg>\n".
func (d *RefDatabase) appendReflog(name plumbing.ReferenceName, old, new plumbing.Hash, message string) error {
	path := d.fs.Join(logsPath, string(name))

	if err := d.fs.MkdirAll(d.fs.Join(logsPath, parentDir(string(name))), 0o777); err != nil {
		return err
	}

	f, err := d.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	now := time.Now()
	_, err = fmt.Fprintf(f, "%s %s %s %d %s\t%s\n",
		old.String(), new.String(), "ngit <ngit@localhost>", now.Unix(), now.Format("-0700"), message)
	return err
}

func parentDir(name string) string {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return ""
	}
	return name[:i]
}
