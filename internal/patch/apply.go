package patch

import (
	"context"
	"fmt"

	"github.com/dshills/lspbridge/internal/editor"
)

// Applier applies patches to the active buffer.
type Applier struct {
	editor editor.LineEditor
}

// NewApplier creates an applier editing e.
func NewApplier(e editor.LineEditor) *Applier {
	return &Applier{editor: e}
}

// Apply runs ops in order against the buffer and then restores the cursor.
// Operations are validated up front; an invalid patch touches nothing. If
// the editor rejects an operation, the operations before it stay applied,
// the cursor is still restored, and the error names the failing index.
func (a *Applier) Apply(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}

	pos, err := a.editor.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	applyErr := a.applyAll(ctx, ops)

	if err := a.restoreCursor(ctx, pos); err != nil && applyErr == nil {
		return err
	}
	return applyErr
}

func (a *Applier) applyAll(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch op.Kind {
		case Delete:
			err = a.editor.DeleteLine(ctx, op.Line)
		case Replace:
			err = a.editor.SetLines(ctx, op.Line, op.Value)
		case Append:
			err = a.editor.AppendLines(ctx, op.Line, op.Value)
		}
		if err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op, err)
		}
	}
	return nil
}

// restoreCursor puts the cursor back on its captured line, clamped to the
// last line if the buffer shrank. The editor clamps the column.
func (a *Applier) restoreCursor(ctx context.Context, pos editor.Position) error {
	count, err := a.editor.LineCount(ctx)
	if err != nil {
		return fmt.Errorf("read line count: %w", err)
	}
	if pos.Line > count {
		pos.Line = count
	}
	if pos.Line < 1 {
		pos.Line = 1
	}
	if err := a.editor.SetCursor(ctx, pos); err != nil {
		return fmt.Errorf("restore cursor: %w", err)
	}
	return nil
}
