package fqn

import (
	"path/filepath"
	"strings"
)

// ExternalPrefix marks qualified ids of call targets with no definition in the analysed set.
const ExternalPrefix = "external::"

// ExternalFile is the origin recorded for external nodes.
const ExternalFile = "external"

// Compute returns the qualified identifier for a function defined in a file.
// Format: <rel_path>:<name>, with the path in slash form.
// Examples:
//   - app/views.py:index
//   - utils.py:slugify
func Compute(relPath, name string) string {
	return filepath.ToSlash(relPath) + ":" + name
}

// External returns the qualified identifier of an unresolved callee.
func External(callee string) string {
	return ExternalPrefix + callee
}

// IsExternal reports whether qn names an external call target.
func IsExternal(qn string) bool {
	return strings.HasPrefix(qn, ExternalPrefix)
}

// BaseCallee cuts callee text at the first whitespace or argument list,
// so "factory(cfg).run" becomes "factory" and "db.query" stays "db.query".
func BaseCallee(callee string) string {
	if idx := strings.IndexAny(callee, " \t\n\r\f\v("); idx >= 0 {
		return callee[:idx]
	}
	return callee
}

// SimpleName returns the last dotted segment of the base callee.
func SimpleName(callee string) string {
	base := BaseCallee(callee)
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		return base[idx+1:]
	}
	return base
}
