package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/lspbridge/internal/logging"
)

// ServerStatus indicates the current state of a server.
type ServerStatus int

const (
	ServerStatusStopped ServerStatus = iota
	ServerStatusStarting
	ServerStatusInitializing
	ServerStatusReady
	ServerStatusShuttingDown
	ServerStatusError
)

// String returns a human-readable status name.
func (s ServerStatus) String() string {
	switch s {
	case ServerStatusStopped:
		return "stopped"
	case ServerStatusStarting:
		return "starting"
	case ServerStatusInitializing:
		return "initializing"
	case ServerStatusReady:
		return "ready"
	case ServerStatusShuttingDown:
		return "shutting down"
	case ServerStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Server represents a connection to a single language server.
type Server struct {
	mu sync.Mutex

	config ServerConfig
	log    *logging.Logger

	// Process management
	cmd *exec.Cmd

	transport *Transport

	status       atomic.Int32
	capabilities ServerCapabilities
	serverInfo   *InitializeServerInfo

	documents   map[DocumentURI]*Document
	documentsMu sync.RWMutex

	workspaceFolders []WorkspaceFolder

	cancel context.CancelFunc
	exitCh chan error
}

// Document is the server-side mirror of an open document: the text the
// server has been told about, split into lines.
type Document struct {
	URI        DocumentURI
	LanguageID string
	Version    int
	Lines      []string
}

// ServerConfig defines how to start a language server.
type ServerConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory (defaults to workspace root).
	WorkDir string

	// InitializationOptions are sent during initialize.
	InitializationOptions any

	// Settings are sent via workspace/didChangeConfiguration and returned
	// for every workspace/configuration item.
	Settings any

	// Timeout bounds the initialize and shutdown requests (default: 30s).
	Timeout time.Duration
}

// NewServer creates a new server instance (not yet started).
func NewServer(config ServerConfig, log *logging.Logger) *Server {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{
		config:    config,
		log:       log.WithComponent("lsp.server"),
		documents: make(map[DocumentURI]*Document),
		exitCh:    make(chan error, 1),
	}
	s.status.Store(int32(ServerStatusStopped))
	return s
}

// Start launches the language server process and initializes it.
func (s *Server) Start(ctx context.Context, workspaceFolders []WorkspaceFolder) error {
	if s.Status() != ServerStatusStopped {
		return fmt.Errorf("server already started")
	}
	s.status.Store(int32(ServerStatusStarting))

	cmd, stdin, stdout, err := s.startProcess(workspaceFolders)
	if err != nil {
		s.status.Store(int32(ServerStatusError))
		return &ServerError{Command: s.config.Command, Err: err}
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	go s.monitorProcess(cmd)

	if err := s.Connect(ctx, stdout, stdin, stdin, workspaceFolders); err != nil {
		_ = cmd.Process.Kill()
		return &ServerError{Command: s.config.Command, Err: err}
	}
	return nil
}

// Connect speaks LSP over an already established stream and performs the
// initialize handshake. Start uses it for the child process pipes.
func (s *Server) Connect(ctx context.Context, r io.Reader, w io.Writer, c io.Closer, workspaceFolders []WorkspaceFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspaceFolders = workspaceFolders

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.transport = NewTransport(r, w, c, s.log.WithComponent("lsp.transport"))
	s.registerHandlers()
	s.transport.Start(loopCtx)

	s.status.Store(int32(ServerStatusInitializing))
	if err := s.initialize(ctx); err != nil {
		s.status.Store(int32(ServerStatusError))
		s.cancel()
		_ = s.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	s.status.Store(int32(ServerStatusReady))
	return nil
}

// startProcess starts the language server executable. Its stderr is
// copied to the log at debug level.
func (s *Server) startProcess(workspaceFolders []WorkspaceFolder) (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
	cmd := exec.Command(s.config.Command, s.config.Args...)

	cmd.Env = os.Environ()
	for k, v := range s.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if s.config.WorkDir != "" {
		cmd.Dir = s.config.WorkDir
	} else if len(workspaceFolders) > 0 {
		cmd.Dir = URIToFilePath(workspaceFolders[0].URI)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, nil, nil, fmt.Errorf("start %s: %w", s.config.Command, err)
	}

	go s.drainStderr(stderr)

	s.log.Info().Str("command", s.config.Command).Int("pid", cmd.Process.Pid).Msg("language server started")
	return cmd, stdin, stdout, nil
}

func (s *Server) drainStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.log.Debug().Str("stderr", strings.TrimRight(string(buf[:n]), "\n")).Msg("language server output")
		}
		if err != nil {
			return
		}
	}
}

// monitorProcess watches the process and signals when it exits.
func (s *Server) monitorProcess(cmd *exec.Cmd) {
	err := cmd.Wait()
	if s.Status() != ServerStatusShuttingDown && s.Status() != ServerStatusStopped {
		s.log.Warn().Err(err).Msg("language server exited")
		s.status.Store(int32(ServerStatusError))
	}

	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		_ = t.Close()
	}

	select {
	case s.exitCh <- err:
	default:
	}
}

// initialize performs the LSP initialize handshake.
func (s *Server) initialize(ctx context.Context) error {
	var rootURI DocumentURI
	if len(s.workspaceFolders) > 0 {
		rootURI = s.workspaceFolders[0].URI
	}

	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               rootURI,
		Capabilities:          DefaultClientCapabilities(),
		InitializationOptions: s.config.InitializationOptions,
		WorkspaceFolders:      s.workspaceFolders,
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var result InitializeResult
	if err := s.transport.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	s.capabilities = result.Capabilities
	s.serverInfo = result.ServerInfo

	if err := s.transport.Notify(ctx, "initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	if s.config.Settings != nil {
		params := map[string]any{"settings": s.config.Settings}
		if err := s.transport.Notify(ctx, "workspace/didChangeConfiguration", params); err != nil {
			return fmt.Errorf("didChangeConfiguration: %w", err)
		}
	}

	ev := s.log.Info().Int("sync", int(GetTextDocumentSyncKind(result.Capabilities)))
	if result.ServerInfo != nil {
		ev = ev.Str("server", result.ServerInfo.Name).Str("version", result.ServerInfo.Version)
	}
	ev.Msg("language server initialized")
	return nil
}

// registerHandlers answers the requests and notifications servers send
// unprompted.
func (s *Server) registerHandlers() {
	s.transport.OnNotification("window/logMessage", s.logServerMessage)
	s.transport.OnNotification("window/showMessage", s.logServerMessage)

	s.transport.OnRequest("workspace/configuration", func(_ string, params json.RawMessage) (any, error) {
		var p ConfigurationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
		result := make([]any, len(p.Items))
		for i := range result {
			result[i] = s.config.Settings
		}
		return result, nil
	})

	nullReply := func(string, json.RawMessage) (any, error) { return nil, nil }
	s.transport.OnRequest("window/workDoneProgress/create", nullReply)
	s.transport.OnRequest("client/registerCapability", nullReply)
	s.transport.OnRequest("client/unregisterCapability", nullReply)
}

// logServerMessage maps the LSP MessageType (1 error .. 4 log) onto log levels.
func (s *Server) logServerMessage(method string, params json.RawMessage) {
	var p ShowMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	ev := s.log.Debug()
	switch p.Type {
	case 1:
		ev = s.log.Error()
	case 2:
		ev = s.log.Warn()
	case 3:
		ev = s.log.Info()
	}
	ev.Str("method", method).Msg(p.Message)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	status := s.Status()
	if status == ServerStatusStopped || status == ServerStatusShuttingDown {
		return nil
	}
	s.status.Store(int32(ServerStatusShuttingDown))

	s.mu.Lock()
	t, cmd, cancel := s.transport, s.cmd, s.cancel
	s.mu.Unlock()

	if t != nil && !t.IsClosed() {
		shutdownCtx, done := context.WithTimeout(ctx, 5*time.Second)
		defer done()

		if err := t.Call(shutdownCtx, "shutdown", nil, nil); err != nil {
			s.log.Debug().Err(err).Msg("shutdown request failed")
		}
		_ = t.Notify(shutdownCtx, "exit", nil)
		_ = t.Close()
	}

	if cancel != nil {
		cancel()
	}

	if cmd != nil && cmd.Process != nil {
		select {
		case <-s.exitCh:
		case <-time.After(2 * time.Second):
			_ = cmd.Process.Kill()
		}
	}

	s.status.Store(int32(ServerStatusStopped))
	return nil
}

// Status returns the current server status.
func (s *Server) Status() ServerStatus {
	return ServerStatus(s.status.Load())
}

// Capabilities returns the server's capabilities.
func (s *Server) Capabilities() ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// ServerInfo returns the name and version the server reported.
func (s *Server) ServerInfo() *InitializeServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// ExitChannel receives the process exit error when a started server exits.
func (s *Server) ExitChannel() <-chan error {
	return s.exitCh
}

// --- Document Management ---

// OpenDocument sends textDocument/didOpen with lines as the content.
func (s *Server) OpenDocument(ctx context.Context, path, languageID string, lines []string) error {
	if s.Status() != ServerStatusReady {
		return ErrServerNotReady
	}

	uri := FilePathToURI(path)
	doc := &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    1,
		Lines:      cloneLines(lines),
	}

	s.documentsMu.Lock()
	s.documents[uri] = doc
	s.documentsMu.Unlock()

	params := DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    doc.Version,
			Text:       joinLines(lines),
		},
	}

	return s.transport.Notify(ctx, "textDocument/didOpen", params)
}

// ReplaceDocument sends the whole content of an open document.
func (s *Server) ReplaceDocument(ctx context.Context, path string, lines []string) error {
	if s.Status() != ServerStatusReady {
		return ErrServerNotReady
	}

	uri := FilePathToURI(path)

	s.documentsMu.Lock()
	doc, exists := s.documents[uri]
	if !exists {
		s.documentsMu.Unlock()
		return ErrDocumentNotOpen
	}
	doc.Version++
	doc.Lines = cloneLines(lines)
	version := doc.Version
	s.documentsMu.Unlock()

	return s.notifyChange(ctx, uri, version, []TextDocumentContentChangeEvent{{Text: joinLines(lines)}})
}

// ChangeLine replaces the text of one 0-based line of an open document.
// Servers that asked for full sync receive the whole updated content.
func (s *Server) ChangeLine(ctx context.Context, path string, line int, text string) error {
	if s.Status() != ServerStatusReady {
		return ErrServerNotReady
	}

	uri := FilePathToURI(path)

	s.documentsMu.Lock()
	doc, exists := s.documents[uri]
	if !exists {
		s.documentsMu.Unlock()
		return ErrDocumentNotOpen
	}
	if line < 0 || line >= len(doc.Lines) {
		s.documentsMu.Unlock()
		return fmt.Errorf("line %d outside document of %d lines", line, len(doc.Lines))
	}

	old := doc.Lines[line]
	doc.Lines[line] = text
	doc.Version++
	version := doc.Version
	full := joinLines(doc.Lines)
	s.documentsMu.Unlock()

	var change TextDocumentContentChangeEvent
	switch GetTextDocumentSyncKind(s.Capabilities()) {
	case TextDocumentSyncKindNone:
		return nil
	case TextDocumentSyncKindIncremental:
		change = TextDocumentContentChangeEvent{
			Range: &Range{
				Start: Position{Line: line, Character: 0},
				End:   Position{Line: line, Character: utf16LenForString(old)},
			},
			Text: text,
		}
	default:
		change = TextDocumentContentChangeEvent{Text: full}
	}

	return s.notifyChange(ctx, uri, version, []TextDocumentContentChangeEvent{change})
}

func (s *Server) notifyChange(ctx context.Context, uri DocumentURI, version int, changes []TextDocumentContentChangeEvent) error {
	params := DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: changes,
	}
	return s.transport.Notify(ctx, "textDocument/didChange", params)
}

// IsDocumentOpen returns true if the document is open.
func (s *Server) IsDocumentOpen(path string) bool {
	uri := FilePathToURI(path)
	s.documentsMu.RLock()
	_, exists := s.documents[uri]
	s.documentsMu.RUnlock()
	return exists
}

// GetDocument returns a copy of the document if open.
func (s *Server) GetDocument(path string) (*Document, bool) {
	return s.getDocument(FilePathToURI(path))
}

func (s *Server) getDocument(uri DocumentURI) (*Document, bool) {
	s.documentsMu.RLock()
	defer s.documentsMu.RUnlock()

	doc, exists := s.documents[uri]
	if !exists {
		return nil, false
	}

	return &Document{
		URI:        doc.URI,
		LanguageID: doc.LanguageID,
		Version:    doc.Version,
		Lines:      cloneLines(doc.Lines),
	}, true
}

// --- LSP Requests ---

// Rename renames the symbol at pos. A nil edit means the server found
// nothing to rename.
func (s *Server) Rename(ctx context.Context, path string, pos Position, newName string) (*WorkspaceEdit, error) {
	if s.Status() != ServerStatusReady {
		return nil, ErrServerNotReady
	}

	if !HasCapability(s.Capabilities().RenameProvider) {
		return nil, ErrNotSupported
	}

	params := RenameParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
			Position:     pos,
		},
		NewName: newName,
	}

	var result *WorkspaceEdit
	if err := s.transport.Call(ctx, "textDocument/rename", params, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// joinLines renders buffer lines as file content with a final newline.
func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

func cloneLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
