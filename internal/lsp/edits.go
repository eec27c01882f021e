package lsp

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/lspbridge/internal/patch"
)

// EditsToOperations folds LSP text edits against lines into whole-line
// patch operations. Edits touching the same lines are merged into one
// group; groups are emitted from the bottom of the document up, so every
// operation's line number is still valid when applied in order.
//
// Positions past the end of a line or of the document are clamped, as a
// server working from a slightly older copy may produce them. Overlapping
// edits return ErrOverlappingEdits.
func EditsToOperations(lines []string, edits []TextEdit) ([]patch.Operation, error) {
	if len(edits) == 0 {
		return nil, nil
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	clamped := make([]TextEdit, len(edits))
	for i, e := range edits {
		clamped[i] = TextEdit{
			Range: Range{
				Start: clampPosition(lines, e.Range.Start),
				End:   clampPosition(lines, e.Range.End),
			},
			NewText: strings.ReplaceAll(e.NewText, "\r\n", "\n"),
		}
		if ComparePositions(clamped[i].Range.Start, clamped[i].Range.End) > 0 {
			return nil, fmt.Errorf("edit %d: start %v after end %v", i, e.Range.Start, e.Range.End)
		}
	}

	// Stable so insertions at the same position keep the server's order.
	sort.SliceStable(clamped, func(i, j int) bool {
		return ComparePositions(clamped[i].Range.Start, clamped[j].Range.Start) < 0
	})
	for i := 1; i < len(clamped); i++ {
		if ComparePositions(clamped[i].Range.Start, clamped[i-1].Range.End) < 0 {
			return nil, fmt.Errorf("%w: %v and %v", ErrOverlappingEdits, clamped[i-1].Range, clamped[i].Range)
		}
	}

	groups := groupEdits(clamped)

	var ops []patch.Operation
	for i := len(groups) - 1; i >= 0; i-- {
		ops = append(ops, groups[i].operations(lines)...)
	}
	return ops, nil
}

// editGroup is a run of edits whose line spans touch.
type editGroup struct {
	first, last int // 0-based, inclusive
	edits       []TextEdit
}

func groupEdits(edits []TextEdit) []editGroup {
	var groups []editGroup
	for _, e := range edits {
		n := len(groups)
		if n > 0 && e.Range.Start.Line <= groups[n-1].last {
			g := &groups[n-1]
			g.edits = append(g.edits, e)
			g.last = max(g.last, e.Range.End.Line)
			continue
		}
		groups = append(groups, editGroup{
			first: e.Range.Start.Line,
			last:  e.Range.End.Line,
			edits: []TextEdit{e},
		})
	}
	return groups
}

// operations rewrites the group's original lines and emits the replace,
// append or delete operations that turn the old lines into the new ones.
func (g editGroup) operations(lines []string) []patch.Operation {
	old := lines[g.first : g.last+1]
	text := strings.Join(old, "\n")

	var b strings.Builder
	cursor := 0
	for _, e := range g.edits {
		start := g.offset(old, e.Range.Start)
		end := g.offset(old, e.Range.End)
		b.WriteString(text[cursor:start])
		b.WriteString(e.NewText)
		cursor = end
	}
	b.WriteString(text[cursor:])

	updated := strings.Split(b.String(), "\n")
	if slices.Equal(old, updated) {
		return nil
	}

	m, k := len(old), len(updated)
	top := g.first + 1
	common := min(m, k)

	ops := []patch.Operation{{Kind: patch.Replace, Line: top, Value: updated[:common]}}
	switch {
	case k > m:
		ops = append(ops, patch.Operation{Kind: patch.Append, Line: top + m - 1, Value: updated[m:]})
	case k < m:
		// Each delete pulls the next surplus line up into the same slot.
		for range m - k {
			ops = append(ops, patch.Operation{Kind: patch.Delete, Line: top + k})
		}
	}
	return ops
}

// offset converts pos into a byte offset within the group's joined text.
func (g editGroup) offset(old []string, pos Position) int {
	off := 0
	for l := g.first; l < pos.Line; l++ {
		off += len(old[l-g.first]) + 1
	}
	return off + utf16ToByteOffset(old[pos.Line-g.first], pos.Character)
}

func clampPosition(lines []string, pos Position) Position {
	last := len(lines) - 1
	switch {
	case pos.Line < 0:
		return Position{}
	case pos.Line > last:
		return Position{Line: last, Character: utf16LenForString(lines[last])}
	}
	width := utf16LenForString(lines[pos.Line])
	return Position{Line: pos.Line, Character: min(max(pos.Character, 0), width)}
}
