package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/patch"
	"github.com/dshills/lspbridge/internal/session"
)

// Backend serves the bridge's sync and rename calls with a language server.
type Backend struct {
	server      *Server
	languageIDs map[string]string
	log         *logging.Logger

	readFile func(string) ([]byte, error)
}

// NewBackend wraps a started server. languageIDs maps file extensions
// (".go") or editor filetypes to LSP language identifiers; the extension
// wins, and filetypes without an entry are sent as is.
func NewBackend(server *Server, languageIDs map[string]string, log *logging.Logger) *Backend {
	if log == nil {
		log = logging.Nop()
	}
	return &Backend{
		server:      server,
		languageIDs: languageIDs,
		log:         log.WithComponent("lsp.backend"),
		readFile:    os.ReadFile,
	}
}

// FullSync opens the document on first sight and otherwise replaces its
// whole content.
func (b *Backend) FullSync(ctx context.Context, snap session.Snapshot) error {
	if snap.File == "" {
		b.log.Debug().Msg("skipping unnamed buffer")
		return nil
	}

	if !b.server.IsDocumentOpen(snap.File) {
		if err := b.server.OpenDocument(ctx, snap.File, b.languageID(snap.File, snap.Filetype), snap.Buffer); err != nil {
			return fmt.Errorf("open %s: %w", snap.File, err)
		}
		return nil
	}

	if err := b.server.ReplaceDocument(ctx, snap.File, snap.Buffer); err != nil {
		return fmt.Errorf("replace %s: %w", snap.File, err)
	}
	return nil
}

// PartialSync sends the snapshot's single line as an incremental change.
// It answers session.ErrFullSyncRequired when the mirror cannot take a
// one-line update: the document is not open or its line count moved.
func (b *Backend) PartialSync(ctx context.Context, snap session.Snapshot) error {
	if snap.File == "" {
		return nil
	}
	if len(snap.Buffer) != 1 {
		return fmt.Errorf("partial snapshot carries %d lines", len(snap.Buffer))
	}

	doc, ok := b.server.GetDocument(snap.File)
	if !ok {
		return session.ErrFullSyncRequired
	}
	if len(doc.Lines) != snap.LineCount || snap.Line < 1 || snap.Line > len(doc.Lines) {
		b.log.Debug().
			Int("mirrored", len(doc.Lines)).
			Int("buffer", snap.LineCount).
			Msg("line count moved")
		return session.ErrFullSyncRequired
	}

	text := snap.Buffer[0]
	if doc.Lines[snap.Line-1] == text {
		return nil
	}
	if err := b.server.ChangeLine(ctx, snap.File, snap.Line-1, text); err != nil {
		return fmt.Errorf("change %s:%d: %w", snap.File, snap.Line, err)
	}
	return nil
}

// Rename asks the server to rename the symbol at pos in file and converts
// the answer into one patch per document.
func (b *Backend) Rename(ctx context.Context, file string, pos editor.Position, newName string) ([]patch.DocumentPatch, error) {
	lines, err := b.documentLines(FilePathToURI(file))
	if err != nil {
		return nil, err
	}

	var lineText string
	if pos.Line >= 1 && pos.Line <= len(lines) {
		lineText = lines[pos.Line-1]
	}

	edit, err := b.server.Rename(ctx, file, EditorToLSPPosition(pos.Line, pos.Column, lineText), newName)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	if edit == nil {
		return nil, nil
	}

	changes := b.collectEdits(edit)

	uris := make([]DocumentURI, 0, len(changes))
	for uri := range changes {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	patches := make([]patch.DocumentPatch, 0, len(uris))
	for _, uri := range uris {
		docLines, err := b.documentLines(uri)
		if err != nil {
			b.log.Warn().Err(err).Str("uri", string(uri)).Msg("skipping document")
			continue
		}
		ops, err := EditsToOperations(docLines, changes[uri])
		if err != nil {
			return nil, fmt.Errorf("convert edits for %s: %w", uri, err)
		}
		if len(ops) == 0 {
			continue
		}
		patches = append(patches, patch.DocumentPatch{
			Document:   URIToFilePath(uri),
			Operations: ops,
		})
	}
	return patches, nil
}

// collectEdits merges both WorkspaceEdit forms by document. File
// operations in documentChanges carry a "kind" member and are skipped.
func (b *Backend) collectEdits(edit *WorkspaceEdit) map[DocumentURI][]TextEdit {
	out := make(map[DocumentURI][]TextEdit, len(edit.Changes))
	for uri, edits := range edit.Changes {
		out[uri] = append(out[uri], edits...)
	}

	for _, raw := range edit.DocumentChanges {
		if kind := gjson.GetBytes(raw, "kind"); kind.Exists() {
			b.log.Warn().Str("kind", kind.String()).Msg("skipping file operation in rename")
			continue
		}
		var de TextDocumentEdit
		if err := json.Unmarshal(raw, &de); err != nil {
			b.log.Warn().Err(err).Msg("skipping malformed document change")
			continue
		}
		out[de.TextDocument.URI] = append(out[de.TextDocument.URI], de.Edits...)
	}
	return out
}

// documentLines returns the mirrored lines of uri, falling back to the
// file on disk for documents the server was never sent.
func (b *Backend) documentLines(uri DocumentURI) ([]string, error) {
	if doc, ok := b.server.getDocument(uri); ok {
		return doc.Lines, nil
	}
	data, err := b.readFile(URIToFilePath(uri))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
		}
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}

func (b *Backend) languageID(file, filetype string) string {
	if ext := filepath.Ext(file); ext != "" {
		if id, ok := b.languageIDs[ext]; ok {
			return id
		}
	}
	if id, ok := b.languageIDs[filetype]; ok {
		return id
	}
	if filetype == "" {
		return "plaintext"
	}
	return filetype
}
