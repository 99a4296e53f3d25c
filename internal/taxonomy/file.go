package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML document of the form
//
//	in-progress: ["A EJECUCIÓN"]
//	qa-review: ["PARA REVISIÓN"]
//	functional-review: ["REVISIÓN FUNCIONAL"]
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes the YAML label mapping.
func Parse(data []byte) (*Taxonomy, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse label mapping: %w", err)
	}
	mapping := make(map[Status][]string, len(raw))
	for name, labels := range raw {
		status, err := ParseStatus(name)
		if err != nil {
			return nil, err
		}
		mapping[status] = append(mapping[status], labels...)
	}
	t, err := New(mapping)
	if err != nil {
		return nil, err
	}
	if t.Size() == 0 {
		return nil, fmt.Errorf("label mapping is empty")
	}
	return t, nil
}

// MarshalYAML encodes the taxonomy in the same shape Parse reads.
func (t *Taxonomy) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, status := range Statuses() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, label := range t.labels[status] {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: label})
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: status.String()},
			seq,
		)
	}
	return node, nil
}
