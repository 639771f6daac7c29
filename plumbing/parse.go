package plumbing

import (
	"strings"

	"github.com/yamaritta/ngit/hash"
)

// parseHashTrim parses s as a hex hash after trimming surrounding
// whitespace, the tolerance loose ref files and packed-refs lines need.
func parseHashTrim(s string) (Hash, error) {
	return hash.FromHex(strings.TrimSpace(s))
}
