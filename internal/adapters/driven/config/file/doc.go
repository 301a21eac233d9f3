// Package file provides file-based implementations of the configuration
// and prompt store ports. Configuration lives in a TOML file and prompts
// in user-editable text files under the parley config directory.
package file
