// Package nofatal reports process-terminating calls outside package main.
//
// Library code must return errors; only the command decides when to exit.
package nofatal

import (
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer is the nofatal analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "nofatal",
	Doc:      "reports os.Exit, log.Fatal* and zap Fatal calls outside package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// forbidden maps package path to function or method names that end the process.
var forbidden = map[string]map[string]bool{
	"os":              {"Exit": true},
	"log":             {"Fatal": true, "Fatalf": true, "Fatalln": true},
	"go.uber.org/zap": {"Fatal": true, "Fatalf": true, "Fatalw": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}
	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("nofatal: unexpected inspect result %T", pass.ResultOf[inspect.Analyzer])
	}

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return
		}
		if name, ok := terminating(pass.TypesInfo, call); ok {
			pass.Reportf(call.Pos(), "%s terminates the process; return an error instead", name)
		}
	})
	return nil, nil
}

func terminating(info *types.Info, call *ast.CallExpr) (string, bool) {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}
	names, ok := forbidden[fn.Pkg().Path()]
	if !ok || !names[fn.Name()] {
		return "", false
	}
	return fn.Pkg().Name() + "." + fn.Name(), true
}
