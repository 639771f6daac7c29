package dotgit

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yamaritta/ngit/plumbing"
)

// ReflogEntry is one line of logs/<name>, the history @{N} and @{date}
// index into (spec.md §4.9).
type ReflogEntry struct {
	Old     plumbing.Hash
	New     plumbing.Hash
	Name    string
	Email   string
	When    time.Time
	Message string
}

// ReadReflog returns name's reflog in file order (oldest first), the same
// order appendReflog writes it in. A name with no reflog yet returns a nil
// slice and no error.
func (d *RefDatabase) ReadReflog(name plumbing.ReferenceName) ([]*ReflogEntry, error) {
	f, err := d.fs.Open(d.fs.Join(logsPath, string(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []*ReflogEntry
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		entry, err := parseReflogLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseReflogLine parses "<old> <new> <name> <<email>> <unix> <tz>\t<msg>".
func parseReflogLine(line string) (*ReflogEntry, error) {
	tab := strings.IndexByte(line, '\t')
	head := line
	msg := ""
	if tab >= 0 {
		head = line[:tab]
		msg = line[tab+1:]
	}

	fields := strings.SplitN(head, " ", 4)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: malformed reflog line", plumbing.ErrCorruptObject)
	}

	old, err := plumbing.FromHexLoose(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad old id", plumbing.ErrCorruptObject)
	}
	newHash, err := plumbing.FromHexLoose(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad new id", plumbing.ErrCorruptObject)
	}

	ident := fields[2]
	rest := fields[3]

	lt := strings.LastIndexByte(rest, '<')
	gt := strings.LastIndexByte(rest, '>')
	name := ident
	email := ""
	timestampField := rest
	if lt >= 0 && gt > lt {
		name = strings.TrimSpace(ident + " " + rest[:lt])
		email = rest[lt+1 : gt]
		timestampField = strings.TrimSpace(rest[gt+1:])
	}

	parts := strings.Fields(timestampField)
	var when time.Time
	if len(parts) >= 1 {
		if sec, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
			when = time.Unix(sec, 0)
			if len(parts) >= 2 {
				if loc, err := parseTZOffset(parts[1]); err == nil {
					when = when.In(loc)
				}
			}
		}
	}

	return &ReflogEntry{
		Old:     old,
		New:     newHash,
		Name:    strings.TrimSpace(name),
		Email:   email,
		When:    when,
		Message: msg,
	}, nil
}

// parseTZOffset parses a "+HHMM"/"-HHMM" offset into a fixed time.Location.
func parseTZOffset(s string) (*time.Location, error) {
	if len(s) != 5 {
		return nil, fmt.Errorf("bad tz offset %q", s)
	}
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
	case '+':
	default:
		return nil, fmt.Errorf("bad tz offset %q", s)
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, err
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, err
	}
	secs := sign * (hh*3600 + mm*60)
	return time.FixedZone(s, secs), nil
}
