package main

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// OsExitAnalyzer reports direct os.Exit calls in func main of package main.
// Deferred cleanup such as the store and activity worker shutdown is skipped
// by os.Exit.
var OsExitAnalyzer = &analysis.Analyzer{
	Name:     "osexitlint",
	Doc:      "reports os.Exit calls in func main",
	Run:      runOsExit,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

// PrintAnalyzer reports fmt.Print, fmt.Printf and fmt.Println outside
// package main.
var PrintAnalyzer = &analysis.Analyzer{
	Name:     "printlint",
	Doc:      "reports fmt printing to stdout outside package main",
	Run:      runPrint,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

var stdoutPrinters = map[string]bool{
	"Print":   true,
	"Printf":  true,
	"Println": true,
}

func render(fset *token.FileSet, x interface{}) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, x); err != nil {
		panic(err)
	}
	return buf.String()
}

// pkgCall returns the import path and selected name of a pkg.Func(...) call.
func pkgCall(pass *analysis.Pass, call *ast.CallExpr) (path, name string, ok bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}

	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", "", false
	}

	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok {
		return "", "", false
	}

	return pkgName.Imported().Path(), sel.Sel.Name, true
}

// generated skips the files the go tool writes into its build cache.
func generated(pass *analysis.Pass, pos token.Pos) bool {
	return strings.Contains(pass.Fset.File(pos).Name(), "go-build")
}

func runOsExit(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Body == nil || fn.Recv != nil || fn.Name.Name != "main" {
			return
		}

		ast.Inspect(fn.Body, func(n ast.Node) bool {
			// closures run on their own schedule
			if _, ok := n.(*ast.FuncLit); ok {
				return false
			}

			call, ok := n.(*ast.CallExpr)
			if !ok || generated(pass, call.Pos()) {
				return true
			}

			if path, name, ok := pkgCall(pass, call); ok && path == "os" && name == "Exit" {
				pass.Reportf(call.Pos(), "os.Exit call is forbidden in main function: %s", render(pass.Fset, call))
			}

			return true
		})
	})

	return nil, nil
}

func runPrint(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		if generated(pass, call.Pos()) {
			return
		}

		if path, name, ok := pkgCall(pass, call); ok && path == "fmt" && stdoutPrinters[name] {
			pass.Reportf(call.Pos(), "fmt.%s writes to stdout; use the logger", name)
		}
	})

	return nil, nil
}
