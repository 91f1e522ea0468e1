// Package osexitmain reports direct os.Exit calls in main.main. An exit there skips
// deferred logger syncs and the uploader drain.
package osexitmain

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
)

// Analyzer is the osexitmain analyzer.
var Analyzer = &analysis.Analyzer{
	Name: "osexitmain",
	Doc:  "reports direct os.Exit calls in main.main",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}
	for _, f := range pass.Files {
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || fd.Name.Name != "main" || fd.Body == nil {
				continue
			}
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				switch x := n.(type) {
				case *ast.FuncLit:
					return false
				case *ast.CallExpr:
					if isOsExitCall(pass.TypesInfo, x) {
						pass.Reportf(x.Pos(), "direct os.Exit in main skips deferred cleanup; return from main instead")
					}
				}
				return true
			})
		}
	}
	return nil, nil
}

// isOsExitCall reports whether call resolves to os.Exit, however the package was imported.
func isOsExitCall(info *types.Info, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || info == nil {
		return false
	}
	fn, ok := info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}
