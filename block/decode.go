package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"
)

// idNamespace seeds the ids given to nodes that arrive without one.
var idNamespace = uuid.NewV5(uuid.NamespaceURL, "https://github.com/micro-blocks/mbc/block")

type rawNode struct {
	Type       string               `json:"type" yaml:"type" toml:"type"`
	ID         string               `json:"id,omitempty" yaml:"id,omitempty" toml:"id"`
	Fields     map[string]any       `json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields"`
	Inputs     map[string]*rawInput `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs"`
	Next       *rawInput            `json:"next,omitempty" yaml:"next,omitempty" toml:"next"`
	ExtraState map[string]any       `json:"extraState,omitempty" yaml:"extraState,omitempty" toml:"extraState"`
}

type rawInput struct {
	Block  *rawNode `json:"block,omitempty" yaml:"block,omitempty" toml:"block"`
	Shadow *rawNode `json:"shadow,omitempty" yaml:"shadow,omitempty" toml:"shadow"`
}

// jsonWorkspace is the editor's workspace serialization.
type jsonWorkspace struct {
	Blocks struct {
		LanguageVersion int        `json:"languageVersion"`
		Blocks          []*rawNode `json:"blocks"`
	} `json:"blocks"`
	Variables []Variable `json:"variables"`
}

// textWorkspace is a hand-writable form that lists blocks directly.
type textWorkspace struct {
	Blocks    []*rawNode `yaml:"blocks" toml:"blocks"`
	Variables []Variable `yaml:"variables" toml:"variables"`
}

// ParseJSON decodes a workspace in the editor's JSON serialization format.
func ParseJSON(data []byte) (*Program, error) {
	var ws jsonWorkspace
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ws); err != nil {
		return nil, fmt.Errorf("decoding workspace: %w", err)
	}
	return convert(ws.Blocks.Blocks, ws.Variables)
}

// ParseYAML decodes a workspace written as YAML. Blocks use the same field
// names as the JSON format but are listed directly under "blocks".
func ParseYAML(data []byte) (*Program, error) {
	var ws textWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decoding workspace: %w", err)
	}
	return convert(ws.Blocks, ws.Variables)
}

// ParseTOML decodes a workspace written as TOML, laid out like the YAML
// form. Keys that do not belong to a block are rejected.
func ParseTOML(data []byte) (*Program, error) {
	var ws textWorkspace
	md, err := toml.Decode(string(data), &ws)
	if err != nil {
		return nil, fmt.Errorf("decoding workspace: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding workspace: unknown key %s", undecoded[0])
	}
	return convert(ws.Blocks, ws.Variables)
}

// ParseFile reads a workspace, choosing the format from the file extension.
func ParseFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return ParseJSON(data)
	}
}

type converter struct {
	seen map[string]string
}

func convert(blocks []*rawNode, vars []Variable) (*Program, error) {
	c := &converter{seen: map[string]string{}}
	prog := &Program{Variables: vars}
	for i, raw := range blocks {
		n, err := c.node(raw, fmt.Sprintf("/%d", i))
		if err != nil {
			return nil, err
		}
		prog.Blocks = append(prog.Blocks, n)
	}
	for i, v := range prog.Variables {
		if v.ID == "" {
			prog.Variables[i].ID = v.Name
		}
	}
	return prog, nil
}

func (c *converter) node(raw *rawNode, path string) (*Node, error) {
	if raw == nil {
		return nil, nil
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("block at %s has no type", path)
	}
	id := raw.ID
	if id == "" {
		id = uuid.NewV5(idNamespace, path).String()
	}
	if other, dup := c.seen[id]; dup {
		return nil, fmt.Errorf("block id %q used at %s and %s", id, other, path)
	}
	c.seen[id] = path

	n := &Node{
		ID:     id,
		Kind:   raw.Type,
		Fields: raw.Fields,
		Extra:  raw.ExtraState,
		Inputs: make(map[string]*Input, len(raw.Inputs)),
	}
	for name, in := range raw.Inputs {
		if in == nil {
			n.Inputs[name] = &Input{}
			continue
		}
		blk, err := c.node(in.Block, path+"/"+name)
		if err != nil {
			return nil, err
		}
		shadow, err := c.node(in.Shadow, path+"/"+name+"/shadow")
		if err != nil {
			return nil, err
		}
		n.Inputs[name] = &Input{Block: blk, Shadow: shadow}
	}
	if raw.Next != nil {
		next, err := c.node(raw.Next.Block, path+"/next")
		if err != nil {
			return nil, err
		}
		n.Next = next
	}
	return n, nil
}
