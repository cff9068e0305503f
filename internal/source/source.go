// Package source holds the immutable unit of text handed to the analyzers.
package source

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// SnippetPath is the synthetic path used for single-snippet analysis.
const SnippetPath = "<snippet>"

// Unit pairs a path-like identifier with source text.
type Unit struct {
	Path string
	Text []byte
}

// Snippet wraps pasted code in a Unit with the synthetic path.
func Snippet(code string) Unit {
	return Unit{Path: SnippetPath, Text: []byte(code)}
}

// Digest returns the hex-encoded xxh3-128 hash of the unit's text.
func (u Unit) Digest() string {
	sum := xxh3.Hash128(u.Text).Bytes()
	return hex.EncodeToString(sum[:])
}
