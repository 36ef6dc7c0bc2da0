// Command linter runs the noexit analyzer. It reports calls that end the
// process outside of func main of a main package:
//   - the builtin panic
//   - os.Exit
//   - log.Fatal, log.Fatalf and log.Fatalln
package main

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer reports process exits outside of main.main.
var Analyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "reports panic, os.Exit and log.Fatal* outside of func main in a main package",
	Run:      runAnalyzer,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

var exitFuncs = map[string]bool{
	"os.Exit":     true,
	"log.Fatal":   true,
	"log.Fatalf":  true,
	"log.Fatalln": true,
}

func runAnalyzer(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
	}

	insp.WithStack(nodeFilter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		if insideMain(pass, stack) {
			return true
		}
		call := n.(*ast.CallExpr)
		switch fn := typeutil.Callee(pass.TypesInfo, call).(type) {
		case *types.Builtin:
			if fn.Name() == "panic" {
				pass.Reportf(call.Pos(), "found usage of panic outside of main function")
			}
		case *types.Func:
			if fn.Pkg() == nil {
				return true
			}
			name := fn.Pkg().Path() + "." + fn.Name()
			if exitFuncs[name] {
				pass.Reportf(call.Pos(), "found usage of %s outside of main function", name)
			}
		}
		return true
	})

	return nil, nil
}

// insideMain reports whether the innermost function declaration on stack is
// main of a main package. Function literals inside main count as main.
func insideMain(pass *analysis.Pass, stack []ast.Node) bool {
	if pass.Pkg.Name() != "main" {
		return false
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if decl, ok := stack[i].(*ast.FuncDecl); ok {
			return decl.Recv == nil && decl.Name.Name == "main"
		}
	}
	return false
}
