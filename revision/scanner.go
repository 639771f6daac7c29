// Package revision parses and resolves git revision expressions — hex ids
// and abbreviations, ref names, `^N`/`^`/`~N`/`^{kind}`/`^{}` peel suffixes,
// `:path` tree lookups, `@{N}`/`@{date}` reflog lookups, and the `git
// describe`-style `NAME-N-g<hex>` suffix (spec.md §4.1).
package revision

import (
	"bufio"
	"io"
)

// token identifies one lexical unit of a revision expression. Each
// reserved punctuation byte gets its own token so the parser can drive a
// single-byte lookahead grammar without re-inspecting raw bytes.
type token int

const (
	tokenError token = iota
	eof
	colon
	tilde
	caret
	dot
	slash
	number
	space
	control
	obrace
	cbrace
	minus
	at
	aslash
	qmark
	asterisk
	obracket
	emark
	word
)

// scanner tokenizes a revision expression one token at a time. It wraps a
// bufio.Reader rather than a plain io.ByteReader so multi-byte runs
// (number, word) can be accumulated with UnreadByte backing out the byte
// that ended the run.
type scanner struct {
	r *bufio.Reader
}

// newScanner returns a scanner reading from r.
func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

// scan returns the next token and its literal text. A genuinely empty
// input (no byte at all, io.EOF before a single byte is read) yields a
// synthetic control token carrying "\x01" — distinct from an explicit NUL
// byte in the stream, which yields eof with an empty literal. This
// distinction lets the parser treat "ran out of input mid-expression"
// (control) differently from "the expression explicitly terminated here"
// (eof), the same way the reconstructed contract's sole surviving test
// evidence (scanner_test.go) requires.
func (s *scanner) scan() (token, string, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return control, "\x01", nil
		}
		return tokenError, "", err
	}

	switch {
	case b == 0:
		return eof, "", nil
	case b == ':':
		return colon, ":", nil
	case b == '~':
		return tilde, "~", nil
	case b == '^':
		return caret, "^", nil
	case b == '.':
		return dot, ".", nil
	case b == '/':
		return slash, "/", nil
	case b == ' ':
		return space, " ", nil
	case b == '{':
		return obrace, "{", nil
	case b == '}':
		return cbrace, "}", nil
	case b == '-':
		return minus, "-", nil
	case b == '@':
		return at, "@", nil
	case b == '\\':
		return aslash, "\\", nil
	case b == '?':
		return qmark, "?", nil
	case b == '*':
		return asterisk, "*", nil
	case b == '[':
		return obracket, "[", nil
	case b == '!':
		return emark, "!", nil
	case isDigit(b):
		return s.scanRun(b, number, isDigit)
	case isWordByte(b):
		return s.scanRun(b, word, isWordByte)
	default:
		return tokenError, string(b), nil
	}
}

// scanRun accumulates consecutive bytes matching class, starting with the
// already-read first byte b, and returns them as a single token.
func (s *scanner) scanRun(b byte, tok token, class func(byte) bool) (token, string, error) {
	buf := []byte{b}
	for {
		next, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return tokenError, "", err
		}
		if !class(next) {
			if err := s.r.UnreadByte(); err != nil {
				return tokenError, "", err
			}
			break
		}
		buf = append(buf, next)
	}
	return tok, string(buf), nil
}

// readRawUntil reads raw bytes (bypassing tokenization) until it consumes
// delim or reaches end of input, returning the bytes before delim and
// whether delim was actually found. Used by the `:path` and `@{...}`
// suffixes, whose content is arbitrary text rather than a token stream.
func (s *scanner) readRawUntil(delim byte) (string, bool, error) {
	var buf []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return string(buf), false, nil
			}
			return "", false, err
		}
		if b == delim {
			return string(buf), true, nil
		}
		buf = append(buf, b)
	}
}

// readRest reads every remaining raw byte.
func (s *scanner) readRest() (string, error) {
	b, err := io.ReadAll(s.r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}
