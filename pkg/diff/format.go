package diff

import (
	"fmt"
	"strings"
)

// FormatPatch renders a file diff as unified-diff text:
//
//	--- a/path
//	+++ b/path
//	@@ -oldStart,oldCount +newStart,newCount @@
//	 context
//	-removed
//	+added
//
// Added files use /dev/null for the old side and deleted files for the
// new side. Lines lacking a trailing newline are marked the way git
// marks them.
func FormatPatch(fd *FileDiff) string {
	var b strings.Builder

	oldName := "a/" + fd.Path
	newName := "b/" + fd.Path
	switch fd.Kind {
	case KindAdded:
		oldName = "/dev/null"
	case KindDeleted:
		newName = "/dev/null"
	case KindModified, KindRenamed:
	}

	fmt.Fprintf(&b, "--- %s\n", oldName)
	fmt.Fprintf(&b, "+++ %s\n", newName)

	for _, h := range fd.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, line := range h.Lines {
			b.WriteString(line.Kind.String())
			if strings.HasSuffix(line.Content, "\n") {
				b.WriteString(line.Content)
			} else {
				b.WriteString(line.Content)
				b.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}

	return b.String()
}

// Summary renders a one-line description of a file diff, e.g.
// "modified a.txt (+3 -1)".
func Summary(fd *FileDiff) string {
	var added, removed int
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case Added:
				added++
			case Removed:
				removed++
			case Context:
			}
		}
	}
	return fmt.Sprintf("%s %s (+%d -%d)", fd.Kind, fd.Path, added, removed)
}
