package rename

//go:generate mockgen -source=interfaces.go -destination=../mock/renamer_mock.go -package=mock

import (
	"context"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/patch"
)

// Renamer asks the language backend for the edits of a rename. It returns
// one patch per affected document.
type Renamer interface {
	Rename(ctx context.Context, file string, pos editor.Position, newName string) ([]patch.DocumentPatch, error)
}
