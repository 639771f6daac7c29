package revision

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/object"
	"github.com/yamaritta/ngit/plumbing/storer"
	"github.com/yamaritta/ngit/storage/dotgit"
)

// ErrUnresolvable means expr is syntactically valid but names nothing —
// the *None* case spec.md §4.9 distinguishes from fatal IO/ambiguity
// errors. Callers that want "missing" and "broken" to look the same can
// collapse it themselves; this package never does that collapsing.
var ErrUnresolvable = errors.New("revision: unresolvable")

// ErrUnsupported means expr uses a feature this resolver has no backing
// store for (abbreviation resolution without a storage.ObjectDatabase,
// or @{...} lookups without a ReflogReader).
var ErrUnsupported = errors.New("revision: unsupported by this storer")

var describeSuffix = regexp.MustCompile(`^(.*)-(\d+)-g([0-9a-fA-F]{4,40})$`)

// abbreviationResolver is implemented by storer.EncodedObjectStorer values
// that can also resolve a hex abbreviation to a unique id —
// *storage.ObjectDatabase does; a storer.EncodedObjectStorer that can't is
// simply unable to serve abbreviations (ErrUnsupported).
type abbreviationResolver interface {
	ResolveUnique(abbrev string) (plumbing.Hash, error)
}

// Resolver evaluates revision expressions (spec.md §4.9) against a
// storer.Storer. ReflogReader is optional; without it, `@{N}`/`@{date}`
// expressions fail with ErrUnsupported. storage.Repository wires its own
// dotgit.RefDatabase.ReadReflog in automatically — see Repository.Resolver.
type Resolver struct {
	Objects      storer.EncodedObjectStorer
	Refs         storer.ReferenceStorer
	ReflogReader func(plumbing.ReferenceName) ([]*dotgit.ReflogEntry, error)
}

// NewResolver returns a Resolver over s, with reflog lookups disabled.
func NewResolver(s storer.Storer) *Resolver {
	return &Resolver{Objects: s, Refs: s}
}

// Resolve parses and evaluates expr, returning ErrUnresolvable if it is
// well-formed but names nothing reachable.
func (r *Resolver) Resolve(expr string) (plumbing.Hash, error) {
	e, err := Parse(expr)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	ops := e.Ops
	var cur plumbing.Hash

	if len(ops) > 0 && (ops[0].Kind == OpReflogIndex || ops[0].Kind == OpReflogDate) {
		h, err := r.resolveReflog(e.Base, ops[0])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		cur = h
		ops = ops[1:]
	} else {
		h, err := r.resolveBase(e.Base)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		cur = h
	}

	for _, op := range ops {
		cur, err = r.applyOp(cur, op)
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return cur, nil
}

func (r *Resolver) resolveBase(base string) (plumbing.Hash, error) {
	if base == "" {
		return r.followRef(plumbing.HEAD)
	}

	if m := describeSuffix.FindStringSubmatch(base); m != nil {
		base = m[3]
	}

	if isHex(base) && len(base) == hash.HexSize {
		return hash.FromHex(base)
	}
	if isHex(base) && len(base) >= 4 {
		ar, ok := r.Objects.(abbreviationResolver)
		if !ok {
			return plumbing.ZeroHash, fmt.Errorf("%w: abbreviation resolution", ErrUnsupported)
		}
		h, err := ar.ResolveUnique(base)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		return h, err
	}

	return r.resolveRefByName(base)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// resolveRefByName tries base against git's usual unqualified-name search
// order, the same set the teacher's dotgit.getRefSearchOrder checks.
func (r *Resolver) resolveRefByName(base string) (plumbing.Hash, error) {
	for _, name := range refSearchOrder(base) {
		h, err := r.followRef(name)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, err
		}
	}
	return plumbing.ZeroHash, ErrUnresolvable
}

func refSearchOrder(base string) []plumbing.ReferenceName {
	if base == string(plumbing.HEAD) || strings.HasPrefix(base, "refs/") {
		return []plumbing.ReferenceName{plumbing.ReferenceName(base)}
	}
	return []plumbing.ReferenceName{
		plumbing.ReferenceName(base),
		plumbing.ReferenceName("refs/" + base),
		plumbing.ReferenceName("refs/tags/" + base),
		plumbing.ReferenceName("refs/heads/" + base),
		plumbing.ReferenceName("refs/remotes/" + base),
		plumbing.ReferenceName("refs/remotes/" + base + "/HEAD"),
	}
}

// maxSymbolicHops bounds symbolic reference chasing, mirroring
// dotgit.maxSymbolicHops — this package has its own copy since it resolves
// against the generic storer.ReferenceStorer interface, not the concrete
// dotgit type.
const maxSymbolicHops = 5

func (r *Resolver) followRef(name plumbing.ReferenceName) (plumbing.Hash, error) {
	for i := 0; i < maxSymbolicHops; i++ {
		ref, err := r.Refs.Reference(name)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if ref.Type() == plumbing.HashReference {
			return ref.Hash(), nil
		}
		name = ref.Target()
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: symbolic reference cycle at %q", plumbing.ErrReferenceNotFound, name)
}

func (r *Resolver) resolveReflog(base string, op Op) (plumbing.Hash, error) {
	if r.ReflogReader == nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: reflog lookups", ErrUnsupported)
	}

	name := plumbing.HEAD
	if base != "" {
		name = plumbing.ReferenceName(base)
		if !strings.HasPrefix(base, "refs/") && base != string(plumbing.HEAD) {
			name = plumbing.ReferenceName("refs/heads/" + base)
		}
	}

	entries, err := r.ReflogReader(name)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(entries) == 0 {
		return plumbing.ZeroHash, ErrUnresolvable
	}

	switch op.Kind {
	case OpReflogIndex:
		if op.N < 0 || op.N >= len(entries) {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		return entries[len(entries)-1-op.N].New, nil
	case OpReflogDate:
		t, err := parseApproxDate(op.Date)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("revision: unparseable @{date} %q: %w", op.Date, err)
		}
		best := -1
		for i, e := range entries {
			if !e.When.After(t) {
				best = i
			}
		}
		if best == -1 {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		return entries[best].New, nil
	default:
		return plumbing.ZeroHash, fmt.Errorf("revision: not a reflog operator")
	}
}

var approxDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseApproxDate(s string) (time.Time, error) {
	for _, layout := range approxDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching date layout")
}

func (r *Resolver) applyOp(h plumbing.Hash, op Op) (plumbing.Hash, error) {
	switch op.Kind {
	case OpParentN:
		return r.applyParentN(h, op.N)
	case OpAncestorN:
		return r.applyAncestorN(h, op.N)
	case OpPeelKind:
		return r.peelToKind(h, op.Type)
	case OpPeelNonTag:
		return r.peelNonTag(h)
	case OpPath:
		return r.resolvePath(h, op.Path)
	default:
		return plumbing.ZeroHash, fmt.Errorf("revision: reflog operator in non-leading position")
	}
}

func (r *Resolver) applyParentN(h plumbing.Hash, n int) (plumbing.Hash, error) {
	c, err := r.peelToCommit(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if n == 0 {
		return c.Hash, nil
	}
	p, err := c.Parent(n - 1)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		return plumbing.ZeroHash, err
	}
	return p.Hash, nil
}

func (r *Resolver) applyAncestorN(h plumbing.Hash, n int) (plumbing.Hash, error) {
	c, err := r.peelToCommit(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	cur := c
	for i := 0; i < n; i++ {
		if cur.NumParents() == 0 {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		next, err := cur.Parent(0)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		cur = next
	}
	return cur.Hash, nil
}

func (r *Resolver) peelToCommit(h plumbing.Hash) (*object.Commit, error) {
	cur := h
	for {
		eo, err := r.Objects.EncodedObject(plumbing.AnyObject, cur)
		if err != nil {
			return nil, err
		}
		switch eo.Type() {
		case plumbing.CommitObject:
			return object.DecodeCommit(r.Objects, eo)
		case plumbing.TagObject:
			tag, err := object.DecodeTag(r.Objects, eo)
			if err != nil {
				return nil, err
			}
			cur = tag.Target
		default:
			return nil, plumbing.ErrIncorrectObjectType
		}
	}
}

func (r *Resolver) peelToKind(h plumbing.Hash, kind string) (plumbing.Hash, error) {
	target := plumbing.ParseObjectType(kind)
	if target == plumbing.InvalidObject {
		return plumbing.ZeroHash, fmt.Errorf("revision: unknown peel kind %q", kind)
	}

	cur := h
	for {
		eo, err := r.Objects.EncodedObject(plumbing.AnyObject, cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if eo.Type() == target {
			return cur, nil
		}
		switch eo.Type() {
		case plumbing.TagObject:
			tag, err := object.DecodeTag(r.Objects, eo)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			cur = tag.Target
		case plumbing.CommitObject:
			if target != plumbing.TreeObject {
				return plumbing.ZeroHash, plumbing.ErrIncorrectObjectType
			}
			c, err := object.DecodeCommit(r.Objects, eo)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			return c.TreeHash, nil
		default:
			return plumbing.ZeroHash, plumbing.ErrIncorrectObjectType
		}
	}
}

func (r *Resolver) peelNonTag(h plumbing.Hash) (plumbing.Hash, error) {
	cur := h
	for {
		eo, err := r.Objects.EncodedObject(plumbing.AnyObject, cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if eo.Type() != plumbing.TagObject {
			return cur, nil
		}
		tag, err := object.DecodeTag(r.Objects, eo)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		cur = tag.Target
	}
}

func (r *Resolver) resolvePath(h plumbing.Hash, path string) (plumbing.Hash, error) {
	c, err := r.peelToCommit(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if path == "" {
		return tree.Hash, nil
	}

	e, err := tree.FindEntry(path)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return plumbing.ZeroHash, ErrUnresolvable
		}
		return plumbing.ZeroHash, err
	}
	return e.Hash, nil
}
