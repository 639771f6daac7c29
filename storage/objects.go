// Package storage multiplexes the on-disk object store (loose, packed, and
// alternate object databases, spec.md §4.6) and the reference store
// (storage/dotgit) into the single read/write seam package plumbing/storer
// defines, and exposes the repository-level façade spec.md §6 describes.
package storage

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"

	"github.com/yamaritta/ngit/cache"
	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/format/idxfile"
	"github.com/yamaritta/ngit/plumbing/format/objfile"
	"github.com/yamaritta/ngit/plumbing/format/packfile"
	"github.com/yamaritta/ngit/plumbing/storer"
	"github.com/yamaritta/ngit/storage/dotgit"
)

// maxAlternateDepth bounds recursive alternate traversal. The alternates
// chain can't be checked for true cycles without comparing filesystem
// identity, which billy.Filesystem doesn't expose uniformly across its
// implementations; a depth bound is the same kind of pragmatic guard the
// ref resolver uses for symbolic ref hops (dotgit.maxSymbolicHops).
const maxAlternateDepth = 16

// errAlternateDepthExceeded is returned internally when the alternates chain
// exceeds maxAlternateDepth; callers never see it; it tells the loader to
// stop and look no further.
var errAlternateDepthExceeded = errors.New("storage: alternate chain too deep")

// packEntry is one loaded pack, kept open for the life of the
// ObjectDatabase (or until refreshPacks notices it vanished from disk).
type packEntry struct {
	id   hash.Hash
	file billy.File
	idx  idxfile.Index
	pf   *packfile.PackFile

	// mmap is non-nil only when this pack's bytes are served through a
	// memory-mapped view instead of file.ReadAt; it must be unmapped
	// alongside file.Close() (spec.md §4.2/§9: PackedGitMmap).
	mmap *cache.MmapSource
}

// ObjectDatabase is the C6 component from spec.md §4.6: Has/Get/Resolve
// dispatch across loaded packs (most-recently-used first), then loose
// objects, then each alternate database in turn, reloading the pack set
// when the objects/pack directory's mtime moves.
type ObjectDatabase struct {
	mu    sync.Mutex
	store *dotgit.ObjectStore
	opts  cache.Options

	windows *cache.WindowCache
	bases   *cache.DeltaBaseCache

	packs     []*packEntry
	packMTime packMTime

	alternates []*ObjectDatabase
}

// packMTime wraps time.Time so the zero value and "never scanned" are
// distinguishable without importing time into this file's public surface.
type packMTime struct {
	set  bool
	unix int64
	nsec int64
}

// NewObjectDatabase returns an ObjectDatabase rooted at fs (a .git
// directory), following objects/info/alternates recursively.
func NewObjectDatabase(fs billy.Filesystem, opts cache.Options) (*ObjectDatabase, error) {
	merged, err := cache.WithDefaults(opts)
	if err != nil {
		return nil, err
	}
	db, err := newObjectDatabase(dotgit.NewObjectStore(fs), merged, 0)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func newObjectDatabase(store *dotgit.ObjectStore, opts cache.Options, depth int) (*ObjectDatabase, error) {
	if depth > maxAlternateDepth {
		return nil, errAlternateDepthExceeded
	}

	db := &ObjectDatabase{
		store:   store,
		opts:    opts,
		windows: cache.NewWindowCache(opts.PackedGitWindowSize, opts.PackedGitLimit),
		bases:   cache.NewDeltaBaseCache(opts.DeltaBaseCacheLimit),
	}
	if err := db.refreshPacks(); err != nil {
		return nil, err
	}

	altStores, err := store.Alternates()
	if err != nil {
		return nil, err
	}
	for _, alt := range altStores {
		sub, err := newObjectDatabase(alt, opts, depth+1)
		if errors.Is(err, errAlternateDepthExceeded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		db.alternates = append(db.alternates, sub)
	}

	return db, nil
}

// refreshPacks reloads the pack list if objects/pack's mtime has moved
// since the last scan, keeping already-open packs that are still present
// (spec.md §4.6: "packs list is refreshed ... when its mtime changes").
func (db *ObjectDatabase) refreshPacks() error {
	mt, err := db.store.PackDirModTime()
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.packs != nil && db.packMTime.set && mt.Unix() == db.packMTime.unix && mt.Nanosecond() == int(db.packMTime.nsec) {
		return nil
	}

	ids, err := db.store.Packs()
	if err != nil {
		return err
	}

	existing := make(map[hash.Hash]*packEntry, len(db.packs))
	for _, p := range db.packs {
		existing[p.id] = p
	}

	fresh := make([]*packEntry, 0, len(ids))
	for _, id := range ids {
		if p, ok := existing[id]; ok {
			fresh = append(fresh, p)
			delete(existing, id)
			continue
		}
		entry, err := db.openPack(id)
		if err != nil {
			return err
		}
		fresh = append(fresh, entry)
	}
	for _, stale := range existing {
		if stale.mmap != nil {
			_ = stale.mmap.Close()
		}
		_ = stale.file.Close()
	}

	db.packs = fresh
	db.packMTime = packMTime{set: true, unix: mt.Unix(), nsec: int64(mt.Nanosecond())}
	return nil
}

func (db *ObjectDatabase) openPack(id hash.Hash) (*packEntry, error) {
	idxFile, err := db.store.PackIdx(id)
	if err != nil {
		return nil, err
	}
	defer idxFile.Close()

	idx, err := idxfile.Decode(idxFile)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", id, err)
	}

	packFile, err := db.store.Pack(id)
	if err != nil {
		return nil, err
	}
	size, err := packFile.Seek(0, io.SeekEnd)
	if err != nil {
		_ = packFile.Close()
		return nil, err
	}
	if _, err := packFile.Seek(0, io.SeekStart); err != nil {
		_ = packFile.Close()
		return nil, err
	}

	entry := &packEntry{id: id, file: packFile, idx: idx}

	var src interface {
		ReadAt(p []byte, off int64) (int, error)
	} = packFile
	if db.opts.PackedGitMmap {
		// Mmap is a negotiated, platform-dependent capability (spec.md §9),
		// not a hard requirement: an unsupported OS or a billy.File with no
		// real descriptor (an in-memory filesystem, say) just falls back to
		// the heap-copy ReaderAt path below.
		if mapped, err := cache.NewMmapSource(packFile, size); err == nil {
			entry.mmap = mapped
			src = mapped
		}
	}

	entry.pf = packfile.NewPackFile(id.String(), src, size, idx, db.windows, db.bases,
		db.externalBase, int64(db.opts.StreamFileThreshold))
	return entry, nil
}

// bumpMRU moves the pack at index i to the front, approximating "most
// recently used pack is checked first" without a separate LRU structure,
// since the pack count is small relative to the object count it indexes.
func (db *ObjectDatabase) bumpMRU(i int) {
	if i <= 0 {
		return
	}
	p := db.packs[i]
	copy(db.packs[1:i+1], db.packs[:i])
	db.packs[0] = p
}

// externalBase resolves a REF_DELTA base id that a thin pack leaves
// outside itself, by checking every other loaded pack, then loose storage,
// then alternates (spec.md §4.4's ExternalBaseLookup collaborator).
func (db *ObjectDatabase) externalBase(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	obj, err := db.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return 0, nil, err
	}
	r, err := obj.Reader()
	if err != nil {
		return 0, nil, err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, err
	}
	return obj.Type(), b, nil
}

// Has reports whether h is present in this database or any alternate.
func (db *ObjectDatabase) Has(h plumbing.Hash) bool {
	if err := db.refreshPacks(); err != nil {
		return false
	}

	db.mu.Lock()
	for _, p := range db.packs {
		if p.idx.Contains(h) {
			db.mu.Unlock()
			return true
		}
	}
	db.mu.Unlock()

	if db.store.HasObject(h) {
		return true
	}
	for _, alt := range db.alternates {
		if alt.Has(h) {
			return true
		}
	}
	return false
}

// HasEncodedObject implements storer.EncodedObjectStorer.
func (db *ObjectDatabase) HasEncodedObject(h plumbing.Hash) error {
	if db.Has(h) {
		return nil
	}
	return plumbing.ErrObjectNotFound
}

// EncodedObjectSize returns the inflated size of h without materializing
// its payload when that's cheap (loose objects only read their header);
// pack entries currently require full delta resolution either way.
func (db *ObjectDatabase) EncodedObjectSize(h plumbing.Hash) (int64, error) {
	obj, err := db.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return 0, err
	}
	return obj.Size(), nil
}

// EncodedObject implements storer.EncodedObjectStorer: packs (MRU first),
// then loose, then alternates, in that order (spec.md §4.6).
func (db *ObjectDatabase) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	if err := db.refreshPacks(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	for i, p := range db.packs {
		if !p.idx.Contains(h) {
			continue
		}
		loader, err := p.pf.Open(h)
		db.bumpMRU(i)
		db.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", plumbing.ErrCorruptObject, h, err)
		}
		return newPackObject(h, loader), nil
	}
	db.mu.Unlock()

	if obj, err := db.looseObject(h); err == nil {
		if t != plumbing.AnyObject && obj.Type() != t {
			return nil, plumbing.ErrObjectNotFound
		}
		return obj, nil
	} else if !errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, err
	}

	for _, alt := range db.alternates {
		obj, err := alt.EncodedObject(t, h)
		if err == nil {
			return obj, nil
		}
		if !errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, err
		}
	}

	return nil, plumbing.ErrObjectNotFound
}

// looseObject opens the loose object named h just far enough to read its
// header. Below the stream threshold it buffers and hash-verifies the
// whole payload immediately, as before; at or above it (spec.md §4.5 point
// 2), it hands back a looseStreamObject that reopens the file fresh on
// every Reader() call instead of ever holding the payload in memory here.
func (db *ObjectDatabase) looseObject(h plumbing.Hash) (plumbing.EncodedObject, error) {
	f, err := db.store.Object(h)
	if err != nil {
		return nil, plumbing.ErrObjectNotFound
	}

	r, err := objfile.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	typ, size, err := r.Header()
	if err != nil {
		r.Close()
		f.Close()
		return nil, err
	}

	threshold := int64(db.opts.StreamFileThreshold)
	if threshold > 0 && size > threshold {
		r.Close()
		f.Close()
		return newLooseStreamObject(h, typ, size, func() (io.ReadCloser, error) {
			return db.openLooseStream(h)
		}), nil
	}

	content, err := io.ReadAll(r)
	r.Close()
	f.Close()
	if err != nil {
		return nil, err
	}
	if got := r.Hash(); got != h {
		return nil, fmt.Errorf("%w: loose object %s hashes to %s", plumbing.ErrCorruptObject, h, got)
	}

	obj := plumbing.NewMemoryObject()
	obj.SetType(typ)
	obj.SetContent(content)
	return newDatabaseObject(obj, threshold), nil
}

// openLooseStream reopens loose object h from scratch and returns a reader
// over its payload that verifies the object's hash once fully consumed.
func (db *ObjectDatabase) openLooseStream(h plumbing.Hash) (io.ReadCloser, error) {
	f, err := db.store.Object(h)
	if err != nil {
		return nil, plumbing.ErrObjectNotFound
	}

	r, err := objfile.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, _, err := r.Header(); err != nil {
		r.Close()
		f.Close()
		return nil, err
	}

	return &hashVerifyingReader{r: r, f: f, want: h}, nil
}

// hashVerifyingReader streams a loose object's payload and, once r reaches
// EOF, checks the running hash objfile.Reader accumulated against want —
// the streaming equivalent of looseObject's upfront r.Hash() check, which
// can only run once every byte has actually been read.
type hashVerifyingReader struct {
	r    *objfile.Reader
	f    billy.File
	want plumbing.Hash
}

func (v *hashVerifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if err == io.EOF {
		if got := v.r.Hash(); got != v.want {
			return n, fmt.Errorf("%w: loose object %s hashes to %s", plumbing.ErrCorruptObject, v.want, got)
		}
	}
	return n, err
}

func (v *hashVerifyingReader) Close() error {
	err := v.r.Close()
	if ferr := v.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// NewEncodedObject implements storer.EncodedObjectStorer.
func (db *ObjectDatabase) NewEncodedObject() plumbing.EncodedObject {
	return plumbing.NewMemoryObject()
}

// SetEncodedObject implements storer.EncodedObjectStorer: obj is always
// written loose (spec.md §4.5); packing is a maintenance operation this
// package doesn't perform on the write path.
func (db *ObjectDatabase) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.Hash, error) {
	r, err := obj.Reader()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer r.Close()

	w, err := db.store.NewObject()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := w.WriteHeader(obj.Type(), obj.Size()); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return w.Hash(), nil
}

// IterEncodedObjects implements storer.EncodedObjectStorer, enumerating
// loose objects and every loaded pack's index, filtered by type and
// deduplicated (a pack and the loose store can both carry the same id).
func (db *ObjectDatabase) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	if err := db.refreshPacks(); err != nil {
		return nil, err
	}

	seen := make(map[plumbing.Hash]bool)
	var all []plumbing.EncodedObject

	loose, err := db.store.IterLooseObjects()
	if err != nil {
		return nil, err
	}
	for _, h := range loose {
		if seen[h] {
			continue
		}
		obj, err := db.looseObject(h)
		if err != nil {
			return nil, err
		}
		if t != plumbing.AnyObject && obj.Type() != t {
			continue
		}
		seen[h] = true
		all = append(all, obj)
	}

	db.mu.Lock()
	packs := append([]*packEntry(nil), db.packs...)
	db.mu.Unlock()

	for _, p := range packs {
		for _, h := range p.idx.Entries() {
			if seen[h] {
				continue
			}
			loader, err := p.pf.Open(h)
			if err != nil {
				return nil, err
			}
			if t != plumbing.AnyObject && loader.Type() != t {
				continue
			}
			obj := newPackObject(h, loader)
			seen[h] = true
			all = append(all, obj)
		}
	}

	return storer.NewEncodedObjectSliceIter(all), nil
}

// Resolve returns every object id matching the abbreviation a, across
// packs, loose storage, and alternates, up to maxMatches+1 entries so the
// caller can detect ambiguity the way spec.md §4.1/§4.6 describes. Results
// are deduplicated and sorted.
func (db *ObjectDatabase) Resolve(a plumbing.AbbreviatedHash, maxMatches int) ([]plumbing.Hash, error) {
	if err := db.refreshPacks(); err != nil {
		return nil, err
	}
	if maxMatches <= 0 {
		maxMatches = 2
	}

	set := make(map[plumbing.Hash]bool)

	db.mu.Lock()
	packs := append([]*packEntry(nil), db.packs...)
	db.mu.Unlock()
	for _, p := range packs {
		matches, err := p.idx.Resolve(a, maxMatches+1)
		if err != nil {
			return nil, err
		}
		for _, h := range matches {
			set[h] = true
		}
	}

	loose, err := db.store.IterLooseObjects()
	if err != nil {
		return nil, err
	}
	for _, h := range loose {
		if h.StartsWith(a) {
			set[h] = true
		}
	}

	for _, alt := range db.alternates {
		matches, err := alt.Resolve(a, maxMatches+1)
		if err != nil {
			return nil, err
		}
		for _, h := range matches {
			set[h] = true
		}
	}

	out := make([]plumbing.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Sort(hash.Slice(out))
	if len(out) > maxMatches {
		out = out[:maxMatches+1]
	}
	return out, nil
}

// ResolveUnique is Resolve plus the disambiguation policy spec.md §4.1
// assigns the caller: exactly one match succeeds, zero is ErrObjectNotFound,
// more than one is an *plumbing.AmbiguousError.
func (db *ObjectDatabase) ResolveUnique(abbrev string) (plumbing.Hash, error) {
	if h, err := hash.FromHex(abbrev); err == nil {
		return h, nil
	}

	a, err := hash.Abbreviate(abbrev)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	matches, err := db.Resolve(a, 1)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	switch len(matches) {
	case 0:
		return plumbing.ZeroHash, plumbing.ErrObjectNotFound
	case 1:
		return matches[0], nil
	default:
		return plumbing.ZeroHash, &plumbing.AmbiguousError{Abbreviation: abbrev, Candidates: matches}
	}
}
