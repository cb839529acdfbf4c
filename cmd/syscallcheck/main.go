// Command syscallcheck is a build-time lint that rejects syscall handlers
// which let a *proc.Proc_t escape into a closure that outlives the call
// that produced it. A process pointer captured by a goroutine or stored
// past Syscall's return can race the scheduler reaping that process the
// moment the syscall's ring-3 future is dropped, so every handler must
// borrow the process table entry only for the duration of the call.
//
// It loads the syscalls package (and everything it imports) with
// golang.org/x/tools/go/packages, builds an SSA form of the program with
// golang.org/x/tools/go/ssa, and for every syscall handler function walks
// its anonymous functions: any whose free variables include a value of
// type *proc.Proc_t is reported, since a free variable is exactly a value
// captured from the enclosing call rather than passed fresh to the
// closure. Only when that finds nothing, golang.org/x/tools/go/pointer
// runs a whole-program points-to analysis over the handlers'
// *proc.Proc_t values, rooted at the loaded main packages, and reports
// any that may point into a package-level global. Loading the syscalls
// package brings in no main package, so in that case the points-to step
// does not run and reports nothing.
package main

import (
	"fmt"
	"go/types"
	"log"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

const targetPkg = "syscalls"
const targetType = "*proc.Proc_t"

func main() {
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax,
		Dir: dir,
	}
	pkgs, err := packages.Load(cfg, targetPkg)
	if err != nil {
		log.Fatalf("syscallcheck: loading %s: %v", targetPkg, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		log.Fatalf("syscallcheck: %s failed to typecheck", targetPkg)
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()

	var violations []string
	var handlers []*ssa.Function

	for _, sp := range ssaPkgs {
		if sp == nil || sp.Pkg.Path() != targetPkg {
			continue
		}
		for _, member := range sp.Members {
			fn, ok := member.(*ssa.Function)
			if !ok || !strings.HasPrefix(fn.Name(), "sys") {
				continue
			}
			handlers = append(handlers, fn)
			violations = append(violations, escapingClosures(fn)...)
		}
	}

	if len(handlers) == 0 {
		log.Fatalf("syscallcheck: found no sys* handlers in %s", targetPkg)
	}

	if len(violations) == 0 {
		// No closure captures a process pointer directly; also run the
		// points-to check over the handlers' process pointers.
		violations = append(violations, pointerEscapes(prog, handlers)...)
	}

	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Println(v)
		}
		os.Exit(1)
	}

	fmt.Printf("syscallcheck: %d handler(s) clean\n", len(handlers))
}

// escapingClosures reports, for each anonymous function nested in fn, any
// free variable whose type is *proc.Proc_t.
func escapingClosures(fn *ssa.Function) []string {
	var out []string
	for _, anon := range fn.AnonFuncs {
		for _, fv := range anon.FreeVars {
			if typeName(fv.Type()) == targetType {
				out = append(out, fmt.Sprintf(
					"%s: closure in %s captures %s (%s)",
					fn.Prog.Fset.Position(anon.Pos()), fn.Name(), fv.Name(), targetType))
			}
		}
	}
	return out
}

// pointerEscapes runs a whole-program pointer analysis rooted at the
// program's main packages, querying every *proc.Proc_t value in handlers,
// and reports any that points-to analysis places in a package-level
// global. With no main package loaded, pointer.Analyze fails and
// pointerEscapes reports nothing.
func pointerEscapes(prog *ssa.Program, handlers []*ssa.Function) []string {
	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		// syscalls has no main package of its own; with an empty main
		// set pointer.Analyze below returns an error.
	}

	cfg := &pointer.Config{
		Mains:          mains,
		BuildCallGraph: false,
		Queries:        make(map[ssa.Value]struct{}),
	}
	for _, fn := range handlers {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				v, ok := instr.(ssa.Value)
				if !ok || typeName(v.Type()) != targetType {
					continue
				}
				cfg.Queries[v] = struct{}{}
			}
		}
	}
	if len(cfg.Queries) == 0 {
		return nil
	}

	result, err := pointer.Analyze(cfg)
	if err != nil {
		// Mains is empty when only the syscalls package is loaded, which
		// pointer.Analyze rejects; the free-variable check above is then
		// the only check that ran.
		return nil
	}

	var out []string
	for v, ptr := range result.Queries {
		for _, label := range ptr.PointsTo().Labels() {
			if label.Value() == nil {
				continue
			}
			if _, isGlobal := label.Value().(*ssa.Global); isGlobal {
				out = append(out, fmt.Sprintf(
					"%s: %s may point into a package-level global", v.Pos(), typeName(v.Type())))
			}
		}
	}
	return out
}

func typeName(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string { return p.Name() })
}
