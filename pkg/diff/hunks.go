package diff

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cogitvcs/cogit/pkg/object"
)

// DefaultContextLines is the number of unchanged lines shown around each
// changed run in a hunk.
const DefaultContextLines = 3

// LineKind tags a single diff line.
type LineKind int

const (
	Context LineKind = iota // line present in both versions
	Added                   // line present in the new version only
	Removed                 // line present in the old version only
)

// String returns the unified-diff prefix for the line kind.
func (k LineKind) String() string {
	switch k {
	case Context:
		return " "
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return "?"
	}
}

// Line is one tagged line of a hunk. Content keeps its trailing newline
// (the final line of a file may lack one), so concatenating a hunk's
// Context+Removed contents reproduces the old slice byte-for-byte, and
// Context+Added the new slice.
type Line struct {
	Kind    LineKind
	Content string
}

// Hunk is a contiguous block of changes with surrounding context.
// OldStart/NewStart are 1-based line numbers; when a side's count is zero
// the start refers to the line after which the change applies (0 when the
// change is at the very beginning), matching unified-diff conventions.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// ChangeKind classifies what happened to a file between two commits.
// The set is closed: every consumer switches exhaustively over it.
type ChangeKind int

const (
	KindAdded ChangeKind = iota
	KindModified
	KindDeleted
	KindRenamed
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindRenamed:
		return "renamed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// MarshalJSON encodes the change kind as its lowercase name.
func (k ChangeKind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindAdded, KindModified, KindDeleted, KindRenamed:
		return []byte(`"` + k.String() + `"`), nil
	default:
		return nil, fmt.Errorf("marshal change kind: unknown value %d", int(k))
	}
}

// UnmarshalJSON decodes a change kind from its lowercase name.
func (k *ChangeKind) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"added"`:
		*k = KindAdded
	case `"modified"`:
		*k = KindModified
	case `"deleted"`:
		*k = KindDeleted
	case `"renamed"`:
		*k = KindRenamed
	default:
		return fmt.Errorf("unmarshal change kind: unknown value %s", data)
	}
	return nil
}

// FileDiff holds the line-level diff for a single file.
type FileDiff struct {
	Path      string
	OldHash   object.Hash // empty for added files
	NewHash   object.Hash // empty for deleted files
	Kind      ChangeKind
	Hunks     []Hunk
	CreatedAt time.Time
}

// File computes the diff for one file. For added files old is nil; for
// deleted files new is nil. Renames are never inferred here: the caller
// decides the kind, and a rename diffs like a modification of the new path.
func File(path string, kind ChangeKind, old, new []byte, context int) *FileDiff {
	fd := &FileDiff{
		Path:      path,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if old != nil {
		fd.OldHash = object.HashObject(object.TypeBlob, old)
	}
	if new != nil {
		fd.NewHash = object.HashObject(object.TypeBlob, new)
	}
	fd.Hunks = Hunks(old, new, context)
	return fd
}

// Hunks computes the hunk sequence turning old into new. Binary content
// (embedded NUL bytes or invalid UTF-8 on either side) is not diffed
// line-wise: the result is a single hunk removing all old lines and
// adding all new lines.
func Hunks(old, new []byte, context int) []Hunk {
	if context < 0 {
		context = DefaultContextLines
	}
	if bytes.Equal(old, new) {
		return nil
	}

	oldLines := splitLines(string(old))
	newLines := splitLines(string(new))

	if isBinary(old) || isBinary(new) {
		return []Hunk{replaceAllHunk(oldLines, newLines)}
	}

	ops := myersDiff(oldLines, newLines)
	return groupHunks(ops, context)
}

// replaceAllHunk builds the single full-replacement hunk used for binary
// content.
func replaceAllHunk(oldLines, newLines []string) Hunk {
	h := Hunk{
		OldStart: 1,
		OldCount: len(oldLines),
		NewStart: 1,
		NewCount: len(newLines),
	}
	if h.OldCount == 0 {
		h.OldStart = 0
	}
	if h.NewCount == 0 {
		h.NewStart = 0
	}
	for _, l := range oldLines {
		h.Lines = append(h.Lines, Line{Kind: Removed, Content: l})
	}
	for _, l := range newLines {
		h.Lines = append(h.Lines, Line{Kind: Added, Content: l})
	}
	return h
}

// groupHunks slices an edit script into hunks, keeping up to context
// unchanged lines around each changed run. Changed runs whose context
// windows touch are merged into one hunk.
func groupHunks(ops []editOp, context int) []Hunk {
	// Indices of changed ops.
	var changed []int
	for i, op := range ops {
		if op.Type != editEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	// Group changed indices: runs separated by more than 2*context equal
	// lines become separate hunks.
	type span struct{ first, last int }
	var spans []span
	cur := span{first: changed[0], last: changed[0]}
	for _, idx := range changed[1:] {
		if idx-cur.last-1 <= 2*context {
			cur.last = idx
		} else {
			spans = append(spans, cur)
			cur = span{first: idx, last: idx}
		}
	}
	spans = append(spans, cur)

	// Precompute the old/new line number at each op position (1-based,
	// the number of the next line to be consumed on that side).
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	oldAt[0], newAt[0] = 1, 1
	for i, op := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		switch op.Type {
		case editEqual:
			oldAt[i+1]++
			newAt[i+1]++
		case editDelete:
			oldAt[i+1]++
		case editInsert:
			newAt[i+1]++
		}
	}

	var hunks []Hunk
	for _, sp := range spans {
		start := sp.first - context
		if start < 0 {
			start = 0
		}
		end := sp.last + context
		if end > len(ops)-1 {
			end = len(ops) - 1
		}

		h := Hunk{OldStart: oldAt[start], NewStart: newAt[start]}
		for i := start; i <= end; i++ {
			switch ops[i].Type {
			case editEqual:
				h.Lines = append(h.Lines, Line{Kind: Context, Content: ops[i].Line})
				h.OldCount++
				h.NewCount++
			case editDelete:
				h.Lines = append(h.Lines, Line{Kind: Removed, Content: ops[i].Line})
				h.OldCount++
			case editInsert:
				h.Lines = append(h.Lines, Line{Kind: Added, Content: ops[i].Line})
				h.NewCount++
			}
		}
		// Unified convention: an empty side points at the preceding line.
		if h.OldCount == 0 {
			h.OldStart--
		}
		if h.NewCount == 0 {
			h.NewStart--
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// splitLines splits s into lines, each keeping its trailing newline.
// The final line has no newline when the content does not end with one.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// isBinary reports whether content should not be diffed line-wise.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content)
}
