// Package config loads the bridge configuration.
//
// Configuration is assembled from layers, each overriding the previous:
//
//	defaults < file (TOML or YAML) < environment (LSPBRIDGE_*) < flags
//
// A zero value in a layer means "not set" and leaves the lower layer's
// value in place. Files are chosen by extension: .toml, .yaml and .yml.
//
// The Watcher reloads a file on change and hands the rebuilt
// configuration to a callback.
package config
