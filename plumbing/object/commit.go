package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// Commit is the decoded form of a commit object: a tree, zero or more
// parents, two signatures, and a free-text message (spec.md §4.9).
type Commit struct {
	Hash         plumbing.Hash
	Author       Signature
	Committer    Signature
	Message      string
	TreeHash     plumbing.Hash
	ParentHashes []plumbing.Hash
	PGPSignature string

	s storer.EncodedObjectStorer
}

func (c *Commit) ID() plumbing.Hash          { return c.Hash }
func (c *Commit) Type() plumbing.ObjectType  { return plumbing.CommitObject }

// Tree returns the commit's root tree.
func (c *Commit) Tree() (*Tree, error) {
	return GetTree(c.s, c.TreeHash)
}

// NumParents returns the number of parents of the commit.
func (c *Commit) NumParents() int { return len(c.ParentHashes) }

// Parent returns the i-th parent of the commit.
func (c *Commit) Parent(i int) (*Commit, error) {
	if i < 0 || i >= len(c.ParentHashes) {
		return nil, plumbing.ErrObjectNotFound
	}
	return GetCommit(c.s, c.ParentHashes[i])
}

// DecodeCommit parses eo as a commit object, grounded on git's commit header
// grammar: a run of "tree"/"parent"/"author"/"committer"/"gpgsig" header
// lines (the last one foldable, continuation lines beginning with a space),
// a blank line, then the free-text message.
func DecodeCommit(s storer.EncodedObjectStorer, eo plumbing.EncodedObject) (*Commit, error) {
	if eo.Type() != plumbing.CommitObject {
		return nil, plumbing.ErrIncorrectObjectType
	}
	raw, err := readAll(eo)
	if err != nil {
		return nil, err
	}

	c := &Commit{Hash: eo.Hash(), s: s}
	if err := c.decode(raw); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Commit) decode(raw []byte) error {
	r := bufio.NewReader(bytes.NewReader(raw))

	var pendingKey string
	var pendingVal []string

	flush := func() error {
		if pendingKey == "" {
			return nil
		}
		val := strings.Join(pendingVal, "\n")
		switch pendingKey {
		case "tree":
			h, err := hash.FromHex(strings.TrimSpace(val))
			if err != nil {
				return fmt.Errorf("%w: bad tree header: %s", plumbing.ErrCorruptObject, err)
			}
			c.TreeHash = h
		case "parent":
			h, err := hash.FromHex(strings.TrimSpace(val))
			if err != nil {
				return fmt.Errorf("%w: bad parent header: %s", plumbing.ErrCorruptObject, err)
			}
			c.ParentHashes = append(c.ParentHashes, h)
		case "author":
			c.Author.Decode([]byte(val))
		case "committer":
			c.Committer.Decode([]byte(val))
		case "gpgsig":
			c.PGPSignature = val
		}
		pendingKey, pendingVal = "", nil
		return nil
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			if err := flush(); err != nil {
				return err
			}
			rest, _ := io.ReadAll(r)
			c.Message = string(rest)
			return nil
		}
		if strings.HasPrefix(trimmed, " ") {
			pendingVal = append(pendingVal, strings.TrimPrefix(trimmed, " "))
		} else {
			if err := flush(); err != nil {
				return err
			}
			sp := strings.IndexByte(trimmed, ' ')
			if sp == -1 {
				return fmt.Errorf("%w: malformed commit header %q", plumbing.ErrCorruptObject, trimmed)
			}
			pendingKey = trimmed[:sp]
			pendingVal = []string{trimmed[sp+1:]}
		}
		if err == io.EOF {
			return flush()
		}
	}
}

// CommitIter iterates over a slice of already-resolved parent hashes,
// decoding each lazily; used by Commit.Parents().
type CommitIter struct {
	s      storer.EncodedObjectStorer
	hashes []plumbing.Hash
	pos    int
}

// Parents returns an iterator over the commit's parents, in header order.
func (c *Commit) Parents() *CommitIter {
	return &CommitIter{s: c.s, hashes: c.ParentHashes}
}

func (it *CommitIter) Next() (*Commit, error) {
	if it.pos >= len(it.hashes) {
		return nil, io.EOF
	}
	h := it.hashes[it.pos]
	it.pos++
	return GetCommit(it.s, h)
}

func (it *CommitIter) ForEach(cb func(*Commit) error) error {
	for {
		c, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (it *CommitIter) Close() {}
