package editor

// EditKind tells an insertion from a deletion.
type EditKind uint8

const (
	EditInsert EditKind = iota + 1
	EditDelete
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Edit is one single-character change at a visible index.
type Edit struct {
	Kind  EditKind
	Index int
	Char  rune
}

// Diff turns a buffer change into single-character edits that, applied in
// order, transform prev into next.
//
// The changed region is found by trimming the longest common prefix and
// suffix, so a paste or cut becomes a run of edits: the removed characters
// are deleted first, then the added ones inserted. Replacing text inside a
// run of repeated characters may be attributed to a neighbouring position;
// the resulting text is the same.
func Diff(prev, next string) []Edit {
	a, b := []rune(prev), []rune(next)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	removed := a[prefix : len(a)-suffix]
	added := b[prefix : len(b)-suffix]

	edits := make([]Edit, 0, len(removed)+len(added))
	for _, r := range removed {
		edits = append(edits, Edit{Kind: EditDelete, Index: prefix, Char: r})
	}
	for i, r := range added {
		edits = append(edits, Edit{Kind: EditInsert, Index: prefix + i, Char: r})
	}
	return edits
}
