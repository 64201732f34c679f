package pipeline

import (
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config 是 Pipeline 的配置结构（支持 YAML/JSON）。
//
//	pipeline:
//	  name: social
//	  nodes:
//	    - type: recall.expansion
//	      config: {min_social: 15, max_seeds: 20, per_seed: 2}
//	    - type: filter.expr
//	      config: {expr: "item.quality >= 5.0"}
//	    - type: rank.weighted
//	      config: {top_k: 10}
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name"`
		Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
	} `yaml:"pipeline" json:"pipeline"`
}

// NodeConfig 是单个 Node 的配置。
type NodeConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config" json:"config"`
}

// ParseYAML 解析 YAML 格式的配置。
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// ParseJSON 解析 JSON 格式的配置。
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &cfg, nil
}

// LoadFromYAML 从 YAML 文件加载 Pipeline 配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseYAML(data)
}

// LoadFromJSON 从 JSON 文件加载 Pipeline 配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseJSON(data)
}

// BuildPipeline 根据配置构建 Pipeline（需要 NodeFactory 注册 Node 构建器）。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	if len(c.Pipeline.Nodes) == 0 {
		return nil, fmt.Errorf("pipeline %q has no nodes", c.Pipeline.Name)
	}
	nodes := make([]Node, 0, len(c.Pipeline.Nodes))
	for _, nc := range c.Pipeline.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return &Pipeline{Nodes: nodes}, nil
}

// NodeBuilder 根据 config 构建 Node。
type NodeBuilder func(map[string]any) (Node, error)

// NodeFactory 用于根据配置构建 Node 实例。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

// Register 注册 Node 构建器。
func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	return builder(config)
}

// Types 返回已注册的 Node 类型（排序）。
func (f *NodeFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate 校验配置中的 Node 类型均已注册。
func (c *Config) Validate(factory *NodeFactory) error {
	for _, nc := range c.Pipeline.Nodes {
		if _, ok := factory.builders[nc.Type]; !ok {
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, factory.Types())
		}
	}
	return nil
}
