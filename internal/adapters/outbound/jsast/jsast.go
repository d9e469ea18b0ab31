// Package jsast inspects JavaScript and TypeScript sources through
// tree-sitter syntax trees.
package jsast

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/openkraft/keeper/internal/domain/remedy"
)

// debugMethods are the console methods treated as debug prints.
var debugMethods = map[string]bool{"log": true, "debug": true}

// statementLists are the nodes whose children may be deleted one statement
// at a time without changing the meaning of a neighbour.
var statementLists = map[string]bool{
	"program":         true,
	"statement_block": true,
	"switch_case":     true,
	"switch_default":  true,
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

func parse(ctx context.Context, path string, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return tree, nil
}

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// debugPrintRows returns the line ranges of every removable debug print
// statement. Files with syntax errors yield none.
func debugPrintRows(ctx context.Context, path string, src []byte) ([][2]int, error) {
	tree, err := parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, nil
	}

	var rows [][2]int
	walk(root, func(n *sitter.Node) {
		if !isDebugCall(n, src) {
			return
		}
		if stmt := removableStatement(n, src); stmt != nil {
			rows = append(rows, [2]int{int(stmt.StartPoint().Row), int(stmt.EndPoint().Row)})
		}
	})
	return rows, nil
}

// isDebugCall matches console.log(...) and console.debug(...).
func isDebugCall(n *sitter.Node, src []byte) bool {
	if n.Type() != "call_expression" {
		return false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "member_expression" {
		return false
	}
	obj := fn.ChildByFieldName("object")
	prop := fn.ChildByFieldName("property")
	if obj == nil || prop == nil || obj.Type() != "identifier" {
		return false
	}
	return obj.Content(src) == "console" && debugMethods[prop.Content(src)]
}

// removableStatement returns the statement made of call alone when it sits
// in a statement list and nothing else shares its lines.
func removableStatement(call *sitter.Node, src []byte) *sitter.Node {
	stmt := call.Parent()
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return nil
	}
	list := stmt.Parent()
	if list == nil || !statementLists[list.Type()] {
		return nil
	}
	// A case label shares its line with the first statement.
	if list.Type() == "switch_case" || list.Type() == "switch_default" {
		if stmt.StartPoint().Row == list.StartPoint().Row {
			return nil
		}
	}
	if !ownsLines(src, int(stmt.StartByte()), int(stmt.EndByte())) {
		return nil
	}
	return stmt
}

func ownsLines(src []byte, start, end int) bool {
	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	if len(bytes.TrimSpace(src[lineStart:start])) > 0 {
		return false
	}
	rest := src[end:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return len(bytes.TrimSpace(rest)) == 0
}

// CountDebugPrints counts the debug print statements StripDebugPrints would
// remove. Calls embedded in larger expressions are not counted.
func CountDebugPrints(ctx context.Context, path string, src []byte) (int, error) {
	rows, err := debugPrintRows(ctx, path, src)
	return len(rows), err
}

// StripDebugPrints deletes every debug print statement that stands alone on
// its lines inside a statement list. When anything is removed, runs of blank
// lines collapse to one.
func StripDebugPrints(ctx context.Context, path string, src []byte) ([]byte, int, error) {
	rows, err := debugPrintRows(ctx, path, src)
	if err != nil || len(rows) == 0 {
		return src, 0, err
	}

	drop := make(map[int]bool)
	for _, r := range rows {
		for row := r[0]; row <= r[1]; row++ {
			drop[row] = true
		}
	}
	out := remedy.CollapseBlankLines(remedy.DropLines(string(src), drop))
	return []byte(out), len(rows), nil
}

// CountAnyTypes counts `any` in type positions: annotations, casts and type
// arguments. Comments and string contents are never counted.
func CountAnyTypes(ctx context.Context, path string, src []byte) (int, error) {
	tree, err := parse(ctx, path, src)
	if err != nil {
		return 0, err
	}
	defer tree.Close()

	count := 0
	walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() == "predefined_type" && n.Content(src) == "any" {
			count++
		}
	})
	return count, nil
}
