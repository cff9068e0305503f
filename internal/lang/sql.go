package lang

func init() {
	// Never discovered on disk; queries only reach the SQL grammar from
	// Python literals.
	Register(&LanguageSpec{Language: SQL})
}
