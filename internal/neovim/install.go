package neovim

import (
	"fmt"

	"github.com/neovim/go-client/nvim"
)

// Handlers receive the editor events. Each must return promptly.
type Handlers struct {
	BufferEntered     func()
	TextChanged       func()
	TextChangedInsert func()
	Rename            func()
}

// CommandRename is the user command that starts a rename.
const CommandRename = "LspBridgeRename"

// setupLua defines the LspBridge augroup and the rename command. The
// arguments are the channel id followed by the method names.
const setupLua = `
local chan, enter, changed, changed_i, rename, command = ...
local group = vim.api.nvim_create_augroup('LspBridge', { clear = true })
local function notify(method)
  return function() vim.rpcnotify(chan, method) end
end
vim.api.nvim_create_autocmd('BufEnter', { group = group, callback = notify(enter) })
vim.api.nvim_create_autocmd('TextChanged', { group = group, callback = notify(changed) })
vim.api.nvim_create_autocmd('TextChangedI', { group = group, callback = notify(changed_i) })
vim.api.nvim_create_user_command(command, notify(rename), { force = true, desc = 'Rename the symbol under the cursor' })
`

// Install registers the RPC notification handlers. Call it before
// DefineAutocmds so no notification arrives unhandled.
func (e *Editor) Install(h Handlers) error {
	handlers := map[string]func(){
		MethodBufferEntered:     h.BufferEntered,
		MethodTextChanged:       h.TextChanged,
		MethodTextChangedInsert: h.TextChangedInsert,
		MethodRename:            h.Rename,
		MethodInsertLeave:       e.insertLeft,
	}
	for method, fn := range handlers {
		if fn == nil {
			fn = func() {}
		}
		if err := e.v.RegisterHandler(method, fn); err != nil {
			return fmt.Errorf("register %s: %w", method, err)
		}
	}
	return nil
}

// DefineAutocmds creates the augroup and the rename command in Neovim.
// It needs a served connection.
func (e *Editor) DefineAutocmds() error {
	err := e.v.ExecLua(setupLua, nil,
		e.v.ChannelID(),
		MethodBufferEntered,
		MethodTextChanged,
		MethodTextChangedInsert,
		MethodRename,
		CommandRename,
	)
	if err != nil {
		return fmt.Errorf("define autocommands: %w", err)
	}
	e.log.Info().Int("channel", e.v.ChannelID()).Msg("autocommands installed")
	return nil
}

// RemoveAutocmds clears the augroup and the rename command.
func (e *Editor) RemoveAutocmds() error {
	return e.v.ExecLua(`
local command = ...
pcall(vim.api.nvim_del_augroup_by_name, 'LspBridge')
pcall(vim.api.nvim_del_user_command, command)
`, nil, CommandRename)
}

// Dial connects to a Neovim listening on address, such as the value of
// $NVIM. The connection is not served; the caller runs Serve.
func Dial(address string, logf func(string, ...any)) (*nvim.Nvim, error) {
	return nvim.Dial(address, nvim.DialServe(false), nvim.DialLogf(logf))
}
