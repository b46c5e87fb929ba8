package reconcile

import (
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

// obj builds a Map from alternating keys and values; values go through the
// encoder unless they already are nodes.
func obj(kv ...any) canonical.Map {
	b := canonical.NewMapBuilder(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		b.Field(kv[i].(string), kv[i+1])
	}
	return b.Build()
}

func list(items ...any) canonical.List {
	nodes := make([]canonical.Node, len(items))
	for i, item := range items {
		nodes[i] = canonical.Encode(item)
	}
	return canonical.NewList(nodes...)
}

// keysAnywhere collects every Map key in the tree.
func keysAnywhere(n canonical.Node) map[string]bool {
	found := map[string]bool{}
	var walk func(canonical.Node)
	walk = func(n canonical.Node) {
		switch x := n.(type) {
		case canonical.Map:
			x.Range(func(k string, v canonical.Node) bool {
				found[k] = true
				walk(v)
				return true
			})
		case canonical.List:
			for _, item := range x.Items() {
				walk(item)
			}
		}
	}
	walk(n)
	return found
}
