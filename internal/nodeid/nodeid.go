// Package nodeid turns free-form labels into identifiers that diagram
// languages accept unquoted.
package nodeid

import (
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Fallback is used when a label sanitizes to nothing.
const Fallback = "node"

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Sanitize replaces every run of non-word characters with "_", prefixes a
// leading digit with "n_" and maps the empty string to Fallback.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(label string) string {
	id := nonWord.ReplaceAllString(label, "_")
	if r, _ := utf8.DecodeRuneInString(id); id != "" && unicode.IsDigit(r) {
		id = "n_" + id
	}
	if id == "" {
		return Fallback
	}
	return id
}

// Allocator hands out collision-free ids for one graph build.
// The same label always maps to the same id; labels that sanitize alike get
// numeric suffixes in allocation order (_2, _3, ...).
type Allocator struct {
	byLabel map[string]string
	used    map[string]bool
}

// NewAllocator returns an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		byLabel: make(map[string]string),
		used:    make(map[string]bool),
	}
}

// ID returns the id for label, allocating one on first use.
func (a *Allocator) ID(label string) string {
	if id, ok := a.byLabel[label]; ok {
		return id
	}
	base := Sanitize(label)
	id := base
	for suffix := 2; a.used[id]; suffix++ {
		id = base + "_" + strconv.Itoa(suffix)
	}
	a.used[id] = true
	a.byLabel[label] = id
	return id
}
