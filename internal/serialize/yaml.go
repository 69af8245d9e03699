package serialize

import "gopkg.in/yaml.v3"

// YAMLDumper produces the debug text-form dump mentioned in spec §6: not
// the canonical save format, but a human-readable snapshot of a
// component's exported state, grounded on original_source's YamlWriter.
type YAMLDumper struct {
	nodes yaml.Node
	root  map[string]any
}

// NewYAMLDumper returns an empty dumper.
func NewYAMLDumper() *YAMLDumper {
	return &YAMLDumper{root: map[string]any{}}
}

// Set records a named field for the final dump. Call once per top-level
// component (e.g. "clock", "cpu", "ppu").
func (d *YAMLDumper) Set(name string, value any) {
	d.root[name] = value
}

// String renders the accumulated fields as YAML.
func (d *YAMLDumper) String() (string, error) {
	out, err := yaml.Marshal(d.root)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseYAMLDump reverses String for debug tooling that wants to inspect a
// previously dumped snapshot; it is never used to reload emulation state.
func ParseYAMLDump(data string) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal([]byte(data), &out); err != nil {
		return nil, err
	}
	return out, nil
}
