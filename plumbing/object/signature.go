package object

import (
	"bytes"
	"errors"
	"strconv"
	"time"
)

var errBadTZOffset = errors.New("object: malformed timezone offset")

// Signature is the author/committer/tagger stamp on a commit or tag object:
// "Name <email> unixseconds +tzoffset" (spec.md §4.9).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Decode parses b, the bytes following the "author"/"committer"/"tagger"
// keyword on a header line, tolerating the malformed and empty-field inputs
// git itself tolerates rather than failing the whole object decode over a
// cosmetic identity line.
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 || close < open {
		return
	}

	if open > 0 && b[open-1] == ' ' {
		s.Name = string(b[:open-1])
	}

	s.Email = string(b[open+1 : close])

	hasTime := close+2 < len(b)
	if !hasTime {
		return
	}

	parts := bytes.SplitN(b[close+2:], []byte{' '}, 2)
	ts, err := strconv.ParseInt(string(parts[0]), 10, 64)
	if err != nil {
		return
	}
	s.When = time.Unix(ts, 0)

	if len(parts) != 2 {
		return
	}
	tz := bytes.TrimSpace(parts[1])
	if loc, err := parseTZOffset(string(tz)); err == nil {
		s.When = s.When.In(loc)
	}
}

// parseTZOffset parses a git-style "+HHMM"/"-HHMM" offset into a fixed zone.
func parseTZOffset(s string) (*time.Location, error) {
	if len(s) != 5 {
		return nil, errBadTZOffset
	}
	hours, err1 := strconv.ParseInt(s[0:3], 10, 64)
	mins, err2 := strconv.ParseInt(s[3:5], 10, 64)
	if err1 != nil || err2 != nil {
		return nil, errBadTZOffset
	}
	if hours < 0 {
		mins = -mins
	}
	return time.FixedZone("", int(hours*3600+mins*60)), nil
}
