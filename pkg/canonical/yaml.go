package canonical

import (
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

func (s Scalar) MarshalYAML() (interface{}, error) { return toYAML(s), nil }

func (l List) MarshalYAML() (interface{}, error) { return toYAML(l), nil }

func (m Map) MarshalYAML() (interface{}, error) { return toYAML(m), nil }

func toYAML(n Node) *yaml.Node {
	switch x := n.(type) {
	case Scalar:
		return scalarYAML(x)
	case List:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x.items {
			out.Content = append(out.Content, toYAML(item))
		}
		return out
	case Map:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range x.keys {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toYAML(x.values[k]))
		}
		return out
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func scalarYAML(s Scalar) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode}
	switch v := s.value.(type) {
	case nil:
		node.Tag, node.Value = "!!null", "null"
	case string:
		node.Tag, node.Value = "!!str", v
	case sentinel:
		node.Tag, node.Value = "!!str", string(v)
	case bool:
		node.Tag, node.Value = "!!bool", strconv.FormatBool(v)
	case int64:
		node.Tag, node.Value = "!!int", strconv.FormatInt(v, 10)
	case float64:
		node.Tag, node.Value = "!!float", strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		node.Tag, node.Value = "!!timestamp", v.Format(time.RFC3339Nano)
	}
	return node
}
