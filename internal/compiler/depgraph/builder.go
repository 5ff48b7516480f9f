package depgraph

import "github.com/btouchard/rs2c/internal/compiler/ast"

// DependencyTreeBuilder is an ast.Visitor that records an edge from the
// enclosing script to every resolved gosub target ("[proc,name]") and
// every resolved command (keyed by its bare name) it calls. Run it after
// (or alongside) the analyzer's symbol resolution, since CallExpr nodes
// only carry meaningful IsGosub/IsCommand flags once resolved.
type DependencyTreeBuilder struct {
	ast.BaseVisitor

	Graph   *Graph
	current string // fullName of the script currently being walked
}

// NewDependencyTreeBuilder returns a builder that writes edges into g.
func NewDependencyTreeBuilder(g *Graph) *DependencyTreeBuilder {
	return &DependencyTreeBuilder{Graph: g}
}

func (b *DependencyTreeBuilder) Enter(n ast.Node) bool {
	switch node := n.(type) {
	case *ast.Script:
		b.current = node.FullName()
		b.Graph.FindOrCreate(b.current)
	case *ast.CallExpr:
		if b.current == "" {
			break
		}
		switch {
		case node.IsGosub:
			b.Graph.AddDependency(b.current, "[proc,"+node.Name+"]")
		case node.IsCommand:
			b.Graph.AddDependency(b.current, node.Name)
		}
	}
	return true
}

func (b *DependencyTreeBuilder) Exit(n ast.Node) {
	if _, ok := n.(*ast.Script); ok {
		b.current = ""
	}
}
