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

// Tag is an annotated tag object: a pointer to another object plus a
// signature and message (spec.md §4.9, feeding the "^{tag}"/"^{}" peel
// operations §4.1 describes).
type Tag struct {
	Hash       plumbing.Hash
	Name       string
	Tagger     Signature
	Message    string
	TargetType plumbing.ObjectType
	Target     plumbing.Hash

	s storer.EncodedObjectStorer
}

func (t *Tag) ID() plumbing.Hash         { return t.Hash }
func (t *Tag) Type() plumbing.ObjectType { return plumbing.TagObject }

// Commit returns the tagged object as a Commit, failing with
// ErrIncorrectObjectType if it isn't one.
func (t *Tag) Commit() (*Commit, error) {
	if t.TargetType != plumbing.CommitObject {
		return nil, plumbing.ErrIncorrectObjectType
	}
	return GetCommit(t.s, t.Target)
}

// Tree returns the tagged object as a Tree.
func (t *Tag) Tree() (*Tree, error) {
	if t.TargetType != plumbing.TreeObject {
		return nil, plumbing.ErrIncorrectObjectType
	}
	return GetTree(t.s, t.Target)
}

// Object resolves the tagged object regardless of its kind, one hop of the
// "^{}" peel-to-non-tag operation.
func (t *Tag) Object() (Object, error) {
	eo, err := t.s.EncodedObject(t.TargetType, t.Target)
	if err != nil {
		return nil, err
	}
	return DecodeObject(t.s, eo)
}

// DecodeTag parses eo as a tag object: "object <hex>\ntype <kind>\ntag
// <name>\ntagger <sig>\n\n<message>".
func DecodeTag(s storer.EncodedObjectStorer, eo plumbing.EncodedObject) (*Tag, error) {
	if eo.Type() != plumbing.TagObject {
		return nil, plumbing.ErrIncorrectObjectType
	}
	raw, err := readAll(eo)
	if err != nil {
		return nil, err
	}

	t := &Tag{Hash: eo.Hash(), s: s}
	if err := t.decode(raw); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tag) decode(raw []byte) error {
	r := bufio.NewReader(bytes.NewReader(raw))

	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			rest, _ := io.ReadAll(r)
			t.Message = string(rest)
			return nil
		}

		sp := strings.IndexByte(trimmed, ' ')
		if sp == -1 {
			return fmt.Errorf("%w: malformed tag header %q", plumbing.ErrCorruptObject, trimmed)
		}
		key, val := trimmed[:sp], trimmed[sp+1:]
		switch key {
		case "object":
			h, err := hash.FromHex(val)
			if err != nil {
				return fmt.Errorf("%w: bad object header: %s", plumbing.ErrCorruptObject, err)
			}
			t.Target = h
		case "type":
			t.TargetType = plumbing.ParseObjectType(val)
		case "tag":
			t.Name = val
		case "tagger":
			t.Tagger.Decode([]byte(val))
		}

		if err == io.EOF {
			return nil
		}
	}
}
