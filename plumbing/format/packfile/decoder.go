package packfile

import (
	"fmt"
	"io"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// ExternalBaseLookup is consulted when a REF_DELTA's base id isn't found
// within the pack being decoded (thin packs reference objects already
// present in the receiving repository). A nil lookup means no external
// bases are available.
type ExternalBaseLookup func(h plumbing.Hash) (typ plumbing.ObjectType, content []byte, err error)

// DecodedObject is one fully reconstructed object: its final type, id, and
// inflated payload, plus the pack offset it was found at.
type DecodedObject struct {
	Offset  int64
	Hash    plumbing.Hash
	Type    plumbing.ObjectType
	Content []byte
}

type rawEntry struct {
	offset int64
	typ    plumbing.ObjectType
	size   int64
	crc32  uint32

	ofsBase int64
	refBase plumbing.Hash
	content []byte // compressed-then-inflated bytes: raw payload or delta instructions
}

type pendingDelta struct {
	entry rawEntry
	depth int
}

// Decode reads every object from r's packfile and returns them fully
// reconstructed (non-delta types only), applying OFS_DELTA and REF_DELTA
// chains as it goes (spec.md §4.4). When storage is non-nil, each decoded
// object is also written through it (the object database's ingestion
// path). external resolves REF_DELTA bases this pack doesn't itself
// contain; pass nil if the pack is known to be self-contained.
func Decode(r io.Reader, storage storer.EncodedObjectStorer, external ExternalBaseLookup) ([]DecodedObject, error) {
	s := NewScanner(r)

	if !s.Scan() {
		return nil, s.Err()
	}
	if s.Data().Section != HeaderSection {
		return nil, ErrMalformedPackfile
	}

	var entries []rawEntry
	for s.Scan() {
		d := s.Data()
		if d.Section == FooterSection {
			break
		}
		oh := d.Object()
		entries = append(entries, rawEntry{
			offset:  oh.Offset,
			typ:     oh.Type,
			size:    oh.Size,
			crc32:   oh.Crc32,
			ofsBase: oh.OffsetReference,
			refBase: oh.HashReference,
			content: d.Content(),
		})
	}
	if s.Err() != nil {
		return nil, s.Err()
	}

	return resolveAll(entries, storage, external)
}

// resolveAll materializes every entry's final (type, content), resolving
// delta chains bottom-up. OFS_DELTA bases always sit at a smaller offset
// than their delta (a pack-format invariant), so a single ascending-offset
// pass resolves every OFS_DELTA inline. REF_DELTA bases may reference an
// object appearing later in the pack, or one entirely outside it (thin
// packs); those are deferred onto a binary heap and retried until every
// one resolves or a pass makes no progress. Every deferred entry goes onto
// the heap with depth 1, so the heap imposes no particular order among
// them; the depth limit is enforced by applyOneDelta against maxDeltaDepth
// (spec.md §4.4).
func resolveAll(entries []rawEntry, storage storer.EncodedObjectStorer, external ExternalBaseLookup) ([]DecodedObject, error) {
	byOffset := make(map[int64]*rawEntry, len(entries))
	for i := range entries {
		byOffset[entries[i].offset] = &entries[i]
	}

	resolved := make(map[int64]DecodedObject, len(entries))
	byHash := make(map[plumbing.Hash]DecodedObject, len(entries))
	depthAt := make(map[int64]int, len(entries))
	depthByHash := make(map[plumbing.Hash]int, len(entries))

	pending := binaryheap.NewWith(func(a, b interface{}) int {
		da, db := a.(pendingDelta), b.(pendingDelta)
		return da.depth - db.depth
	})

	for i := range entries {
		e := entries[i]
		switch {
		case e.typ.Valid():
			obj := DecodedObject{Offset: e.offset, Type: e.typ, Content: e.content}
			obj.Hash = plumbing.HashObject(e.typ, e.content)
			resolved[e.offset] = obj
			byHash[obj.Hash] = obj
			depthAt[e.offset] = 0
			depthByHash[obj.Hash] = 0

		case e.typ == plumbing.OFSDeltaObject:
			base, ok := resolved[e.ofsBase]
			if !ok {
				return nil, fmt.Errorf("%w: ofs-delta base at %d not yet resolved", ErrMalformedPackfile, e.ofsBase)
			}
			depth := depthAt[e.ofsBase] + 1
			obj, err := applyOneDelta(e, base, depth)
			if err != nil {
				return nil, err
			}
			resolved[e.offset] = obj
			byHash[obj.Hash] = obj
			depthAt[e.offset] = depth
			depthByHash[obj.Hash] = depth

		case e.typ == plumbing.REFDeltaObject:
			if b, ok := byHash[e.refBase]; ok {
				depth := depthByHash[e.refBase] + 1
				obj, err := applyOneDelta(e, b, depth)
				if err != nil {
					return nil, err
				}
				resolved[e.offset] = obj
				byHash[obj.Hash] = obj
				depthAt[e.offset] = depth
				depthByHash[obj.Hash] = depth
				continue
			}
			pending.Push(pendingDelta{entry: e, depth: 1})

		default:
			return nil, fmt.Errorf("%w: unknown object type %v", ErrMalformedPackfile, e.typ)
		}
	}

	// Drain the pending REF_DELTA queue; each successful resolution may
	// unblock entries pushed after it, and a full pass that resolves
	// nothing means every remaining entry is unsatisfiable.
	for pending.Size() > 0 {
		progressed := false
		var stillPending []pendingDelta

		for pending.Size() > 0 {
			v, _ := pending.Pop()
			pd := v.(pendingDelta)

			if pd.depth > maxDeltaDepth {
				return nil, ErrMaxDeltaDepth
			}

			if b, ok := byHash[pd.entry.refBase]; ok {
				depth := depthByHash[pd.entry.refBase] + 1
				obj, err := applyOneDelta(pd.entry, b, depth)
				if err != nil {
					return nil, err
				}
				resolved[pd.entry.offset] = obj
				byHash[obj.Hash] = obj
				depthAt[pd.entry.offset] = depth
				depthByHash[obj.Hash] = depth
				progressed = true
				continue
			}

			if external != nil {
				typ, content, err := external(pd.entry.refBase)
				if err == nil {
					base := DecodedObject{Type: typ, Content: content, Hash: pd.entry.refBase}
					obj, err := applyOneDelta(pd.entry, base, pd.depth+1)
					if err != nil {
						return nil, err
					}
					resolved[pd.entry.offset] = obj
					byHash[obj.Hash] = obj
					depthAt[pd.entry.offset] = pd.depth + 1
					depthByHash[obj.Hash] = pd.depth + 1
					progressed = true
					continue
				}
			}

			stillPending = append(stillPending, pd)
		}

		if !progressed {
			return nil, ErrReferenceDeltaNotFound
		}
		for _, pd := range stillPending {
			pending.Push(pd)
		}
	}

	out := make([]DecodedObject, 0, len(entries))
	for i := range entries {
		obj, ok := resolved[entries[i].offset]
		if !ok {
			return nil, fmt.Errorf("%w: entry at %d never resolved", ErrMalformedPackfile, entries[i].offset)
		}
		out = append(out, obj)

		if storage != nil {
			mo := plumbing.NewMemoryObject()
			mo.SetType(obj.Type)
			mo.SetContent(append([]byte(nil), obj.Content...))
			if _, err := storage.SetEncodedObject(mo); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyOneDelta(e rawEntry, base DecodedObject, depth int) (DecodedObject, error) {
	if depth > maxDeltaDepth {
		return DecodedObject{}, ErrMaxDeltaDepth
	}
	content, err := applyDelta(base.Content, e.content)
	if err != nil {
		return DecodedObject{}, err
	}
	obj := DecodedObject{Offset: e.offset, Type: base.Type, Content: content}
	obj.Hash = plumbing.HashObject(obj.Type, content)
	return obj, nil
}
