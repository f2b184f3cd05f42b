package crdt

import (
	"fmt"
	"strconv"
	"strings"
)

// OperationID identifies one inserted element. Seq is a per-site counter and
// Site is the identifier of the replica that generated it.
type OperationID struct {
	Seq  uint64
	Site string
}

// IsZero reports whether id is the zero value.
func (id OperationID) IsZero() bool {
	return id.Seq == 0 && id.Site == ""
}

// String renders the wire form "<seq>@<site>".
func (id OperationID) String() string {
	return strconv.FormatUint(id.Seq, 10) + "@" + id.Site
}

// Compare is the one total order on ids used everywhere ids are ordered.
// Counters are compared numerically, higher counters first, and equal
// counters fall back to the site string. It returns -1 when id sorts before
// other, 0 when they are equal and +1 otherwise.
//
// Placing higher counters first means an element inserted after its origin
// lands directly behind it: the generator keeps its counter above every id
// it has integrated (see Generator.Observe).
func (id OperationID) Compare(other OperationID) int {
	switch {
	case id.Seq > other.Seq:
		return -1
	case id.Seq < other.Seq:
		return 1
	}
	return strings.Compare(id.Site, other.Site)
}

// Less reports whether id sorts before other under Compare.
func (id OperationID) Less(other OperationID) bool {
	return id.Compare(other) < 0
}

// ParseOperationID parses the "<seq>@<site>" form.
func ParseOperationID(s string) (OperationID, error) {
	seqPart, site, ok := strings.Cut(s, "@")
	if !ok || seqPart == "" || site == "" {
		return OperationID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil || seq == 0 {
		return OperationID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return OperationID{Seq: seq, Site: site}, nil
}

// MarshalText implements encoding.TextMarshaler so ids travel as strings.
func (id OperationID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: zero id", ErrMalformedID)
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *OperationID) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
