package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/patch"
	"github.com/dshills/lspbridge/internal/session"
)

func newReplayCommand() *cobra.Command {
	var line, column int
	cmd := &cobra.Command{
		Use:   "replay FILE PATCH",
		Short: "Apply a JSON patch to a file and print the result",
		Long: `replay loads FILE into an in-memory buffer, applies the operations in
PATCH (a JSON array of {"op", "line", "val"} objects) exactly as they would
be applied to a Neovim buffer, and prints the resulting text. FILE is not
modified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := replay(cmd.Context(), args[0], args[1], editor.Position{Line: line, Column: column})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&line, "line", 1, "Cursor line before the patch")
	cmd.Flags().IntVar(&column, "column", 1, "Cursor column before the patch")
	return cmd
}

func replay(ctx context.Context, file, patchFile string, cursor editor.Position) (string, error) {
	text, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(patchFile)
	if err != nil {
		return "", err
	}
	ops, err := patch.Decode(raw)
	if err != nil {
		return "", err
	}

	buf := editor.NewBuffer(session.Identity{File: file}, splitLines(string(text))...)
	if err := buf.SetCursor(ctx, cursor); err != nil {
		return "", err
	}
	if err := patch.NewApplier(buf).Apply(ctx, ops); err != nil {
		return "", fmt.Errorf("apply %s: %w", patchFile, err)
	}

	lines, err := buf.Lines(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// splitLines splits text into lines, dropping the final newline.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
