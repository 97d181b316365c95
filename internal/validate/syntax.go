package validate

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxValid reports whether the source parses as Python without error
// nodes. Parsing happens in-process, no interpreter required.
func SyntaxValid(source string) bool {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		return false
	}
	defer tree.Close()

	return !hasSyntaxError(tree.RootNode())
}

func hasSyntaxError(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.IsError() || node.IsMissing() {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasSyntaxError(node.Child(i)) {
			return true
		}
	}
	return false
}
