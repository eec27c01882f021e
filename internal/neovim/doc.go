// Package neovim adapts a Neovim instance reached over msgpack-RPC to the
// editor interfaces used by the bridge.
//
// Install defines the autocommands and the :LspBridgeRename command that
// notify the bridge. Notification handlers run serially on the RPC
// connection, so the callbacks given to Install must not block.
package neovim
