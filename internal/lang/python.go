package lang

func init() {
	Register(&LanguageSpec{
		Language:          Python,
		FileExtensions:    []string{".py"},
		FunctionNodeTypes: []string{"function_definition"},
		StringNodeTypes:   []string{"string", "concatenated_string"},
		CommentNodeTypes:  []string{"comment"},
		// match/case arms and comprehension filters branch like if statements.
		BranchingNodeTypes: []string{
			"if_statement", "elif_clause", "for_statement", "while_statement",
			"except_clause", "with_statement", "boolean_operator",
			"conditional_expression", "for_in_clause", "if_clause", "case_clause",
		},
		// Python 2 statement forms the grammar still accepts.
		RejectedNodeTypes: []string{"print_statement", "exec_statement"},
	})
}
