package dotgit

import (
	"errors"
	"fmt"
	"os"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/storage/dotgit/lock"
)

// writeLooseRef acquires a lock on name's loose file, writes content as the
// whole file body, and commits (spec.md §4.7/§4.8: every ref write goes
// through the lock-file protocol, never a direct open-and-write).
func (d *RefDatabase) writeLooseRef(name plumbing.ReferenceName, content string) error {
	if dir := parentDir(string(name)); dir != "" {
		if err := d.fs.MkdirAll(dir, 0o777); err != nil {
			return err
		}
	}

	l, err := lock.Acquire(d.fs, string(name))
	if err != nil {
		return fmt.Errorf("%w: %w", plumbing.ErrLockFailed, err)
	}
	if _, err := l.Write([]byte(content + "\n")); err != nil {
		_ = l.Rollback()
		return err
	}
	return l.Commit()
}

// SetReference implements storer.ReferenceStorer: an unconditional write,
// used for initial setup (HEAD) and callers that have already done their
// own conflict checking.
func (d *RefDatabase) SetReference(ref *plumbing.Reference) error {
	return d.writeLooseRef(ref.Name(), ref.String())
}

// CheckAndSetReference implements storer.ReferenceStorer: new is written
// only if the store's current value for new.Name() matches old (or old is
// nil, meaning the name must not currently exist), matching spec.md §3.2
// invariant 7. Unlike RefUpdate.Update, this performs no fast-forward
// check; it is the low-level compare-and-swap the resolver and higher
// layers build on.
func (d *RefDatabase) CheckAndSetReference(new, old *plumbing.Reference) error {
	current, err := d.Reference(new.Name())
	exists := err == nil
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}

	if old == nil {
		if exists {
			return ErrReferenceHasChanged
		}
	} else {
		if !exists {
			return ErrReferenceHasChanged
		}
		if !sameTarget(current, old) {
			return ErrReferenceHasChanged
		}
	}

	return d.SetReference(new)
}

func sameTarget(a, b *plumbing.Reference) bool {
	if a.Type() != b.Type() {
		return false
	}
	if a.Type() == plumbing.SymbolicReference {
		return a.Target() == b.Target()
	}
	return a.Hash() == b.Hash()
}

// RemoveReference implements storer.ReferenceStorer. Removing a name that
// only exists in packed-refs (StorageClass PackedStorage) is a no-op here;
// PackRefs is the only writer of that file and a full scrub-and-rewrite is
// left to a future repack, matching the teacher's own incremental-removal
// behavior for loose refs.
func (d *RefDatabase) RemoveReference(name plumbing.ReferenceName) error {
	err := d.fs.Remove(string(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// UpdateResult is the outcome of a RefUpdate, per spec.md §4.7.
type UpdateResult int

const (
	UpdateUnknown UpdateResult = iota
	UpdateNew
	UpdateFastForward
	UpdateForced
	UpdateNoChange
	UpdateRejected
	UpdateRejectedCurrentBranch
	UpdateLockFailure
	UpdateIOFailure
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateNew:
		return "new"
	case UpdateFastForward:
		return "fast-forward"
	case UpdateForced:
		return "forced"
	case UpdateNoChange:
		return "no-change"
	case UpdateRejected:
		return "rejected"
	case UpdateRejectedCurrentBranch:
		return "rejected-current-branch"
	case UpdateLockFailure:
		return "lock-failure"
	case UpdateIOFailure:
		return "io-failure"
	default:
		return "unknown"
	}
}

// ReachabilityChecker answers whether new is reachable from old, i.e.
// whether updating old -> new is a fast-forward. It is injected by the
// caller (the revision-walk collaborator, out of this module's scope per
// spec.md §1) rather than implemented here.
type ReachabilityChecker func(old, new plumbing.Hash) (bool, error)

// RefUpdate is the writer contract from spec.md §4.7: set a new value for
// a named reference, optionally guarded by an expected old value, with a
// fast-forward check unless forced, and a reflog record on success.
type RefUpdate struct {
	db      *RefDatabase
	name    plumbing.ReferenceName
	newVal  plumbing.Hash
	oldVal  plumbing.Hash
	hasOld  bool
	force   bool
	message string
	check   ReachabilityChecker
}

// NewUpdate returns a RefUpdate for name.
func (d *RefDatabase) NewUpdate(name plumbing.ReferenceName) *RefUpdate {
	return &RefUpdate{db: d, name: name}
}

// SetNewObjectID sets the value the ref should point to after Update.
func (u *RefUpdate) SetNewObjectID(h plumbing.Hash) { u.newVal = h }

// SetExpectedOldObjectID requires the current value to equal h before the
// update is applied; ZeroHash means "must not currently exist".
func (u *RefUpdate) SetExpectedOldObjectID(h plumbing.Hash) {
	u.oldVal = h
	u.hasOld = true
}

// SetForceUpdate allows a non-fast-forward change to go through without a
// ReachabilityChecker verifying it.
func (u *RefUpdate) SetForceUpdate(force bool) { u.force = force }

// SetRefLogMessage sets the message appended to this ref's reflog on a
// successful update.
func (u *RefUpdate) SetRefLogMessage(msg string) { u.message = msg }

// SetReachabilityChecker injects the fast-forward oracle; without one, any
// non-force update to an existing ref whose value is changing is rejected,
// since this module does not implement commit-graph walks itself
// (spec.md §1, "revision walks beyond parse/peel: consumers").
func (u *RefUpdate) SetReachabilityChecker(check ReachabilityChecker) { u.check = check }

// Update performs the algorithm in spec.md §4.7: lock, compare-expected,
// fast-forward check, write, reflog.
func (u *RefUpdate) Update() (UpdateResult, error) {
	d := u.db

	if dir := parentDir(string(u.name)); dir != "" {
		if err := d.fs.MkdirAll(dir, 0o777); err != nil {
			return UpdateIOFailure, err
		}
	}

	l, err := lock.Acquire(d.fs, string(u.name))
	if err != nil {
		return UpdateLockFailure, fmt.Errorf("%w: %w", plumbing.ErrLockFailed, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = l.Rollback()
		}
	}()

	current, err := d.Reference(u.name)
	exists := err == nil
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return UpdateIOFailure, err
	}

	var oldHash plumbing.Hash
	if exists && current.Type() == plumbing.HashReference {
		oldHash = current.Hash()
	}

	if u.hasOld {
		var got plumbing.Hash
		if exists {
			got = oldHash
		}
		if got != u.oldVal {
			return UpdateLockFailure, ErrReferenceHasChanged
		}
	}

	switch {
	case !exists:
		if err := u.commit(l, &committed); err != nil {
			return UpdateIOFailure, err
		}
		return UpdateNew, u.reflog(plumbing.ZeroHash)

	case oldHash == u.newVal:
		return UpdateNoChange, nil

	case u.force:
		if err := u.commit(l, &committed); err != nil {
			return UpdateIOFailure, err
		}
		return UpdateForced, u.reflog(oldHash)

	default:
		ff := false
		if u.check != nil {
			ff, err = u.check(oldHash, u.newVal)
			if err != nil {
				return UpdateIOFailure, err
			}
		}
		if !ff {
			if d.isCheckedOut(u.name) {
				return UpdateRejectedCurrentBranch, nil
			}
			return UpdateRejected, nil
		}
		if err := u.commit(l, &committed); err != nil {
			return UpdateIOFailure, err
		}
		return UpdateFastForward, u.reflog(oldHash)
	}
}

func (u *RefUpdate) commit(l *lock.File, committed *bool) error {
	if _, err := l.Write([]byte(u.newVal.String() + "\n")); err != nil {
		return err
	}
	if err := l.Commit(); err != nil {
		return err
	}
	*committed = true
	return nil
}

func (u *RefUpdate) reflog(old plumbing.Hash) error {
	return u.db.appendReflog(u.name, old, u.newVal, u.message)
}

// isCheckedOut reports whether name is the branch HEAD currently resolves
// to symbolically (not merely the same hash), the condition
// UpdateRejectedCurrentBranch singles out in spec.md §4.7.
func (d *RefDatabase) isCheckedOut(name plumbing.ReferenceName) bool {
	head, err := d.readLooseRef(plumbing.HEAD)
	if err != nil {
		return false
	}
	return head.Type() == plumbing.SymbolicReference && head.Target() == name
}
