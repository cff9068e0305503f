// Package lang holds the tree-sitter node vocabulary the analyzers match on.
package lang

// Language names a tree-sitter grammar.
type Language string

const (
	Python Language = "python"
	// SQL is only used to check queries pulled out of Python string literals.
	SQL Language = "sql"
)

// LanguageSpec lists the node kinds each analysis looks for in one grammar.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	FunctionNodeTypes []string
	StringNodeTypes   []string
	CommentNodeTypes  []string
	// BranchingNodeTypes each add one decision point to cyclomatic complexity.
	BranchingNodeTypes []string
	// RejectedNodeTypes parse without error but are not valid in the
	// supported language version.
	RejectedNodeTypes []string
}

var (
	byLanguage  = map[Language]*LanguageSpec{}
	byExtension = map[string]*LanguageSpec{}
)

// Register makes spec available through ForLanguage and ForExtension.
func Register(spec *LanguageSpec) {
	byLanguage[spec.Language] = spec
	for _, ext := range spec.FileExtensions {
		byExtension[ext] = spec
	}
}

// ForExtension returns the spec claiming a file extension such as ".py".
func ForExtension(ext string) *LanguageSpec {
	return byExtension[ext]
}

func ForLanguage(l Language) *LanguageSpec {
	return byLanguage[l]
}

// LanguageForExtension reports which language owns ext.
func LanguageForExtension(ext string) (Language, bool) {
	if spec := byExtension[ext]; spec != nil {
		return spec.Language, true
	}
	return "", false
}

// NodeSet turns a list of node kinds into a lookup set.
func NodeSet(kinds []string) map[string]bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
