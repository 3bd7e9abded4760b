package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/catalogrec/core"
)

// Config 描述用户推荐链路，可以是 YAML 或 JSON：
//
//	pipeline:
//	  name: user
//	  nodes:
//	    - type: recall.unrated
//	    - type: filter
//	      config: {owned_type: true}
//	    - type: rank.rating
//	    - type: rerank.diversity
//	      config: {per_type: 1}
//
// rerank.topn 由请求的 n 参数驱动，通常不必显式配置。
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name"`
		Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
	} `yaml:"pipeline" json:"pipeline"`
}

type NodeConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config" json:"config"`
}

// LoadFromYAML 读取链路配置文件；扩展名为 .json 时按 JSON 解析，其余按 YAML。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "parse pipeline yaml", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "parse pipeline json", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Pipeline.Nodes) == 0 {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "pipeline has no nodes")
	}
	for i, nc := range c.Pipeline.Nodes {
		if strings.TrimSpace(nc.Type) == "" {
			return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
				fmt.Sprintf("pipeline node #%d has no type", i))
		}
	}
	return nil
}

// BuildPipeline 用 factory 按顺序实例化各 Node。
// 第一个 Node 必须是召回阶段，否则链路没有候选来源。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(c.Pipeline.Nodes))
	for i, nc := range c.Pipeline.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q node #%d: %w", c.Pipeline.Name, i, err)
		}
		nodes = append(nodes, node)
	}
	if k := nodes[0].Kind(); k != KindRecall {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
			fmt.Sprintf("pipeline %q must start with a recall node, got %s (%s)", c.Pipeline.Name, nodes[0].Name(), k))
	}
	return &Pipeline{Nodes: nodes}, nil
}

// NodeBuilder 由 node 的 config 段构造 Node；config 不为 nil。
type NodeBuilder func(cfg map[string]any) (Node, error)

// NodeFactory 是 node 类型名到 NodeBuilder 的注册表。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Types 返回已注册的类型名（排序）。
func (f *NodeFactory) Types() []string {
	out := make([]string, 0, len(f.builders))
	for t := range f.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotSupported,
			fmt.Sprintf("unknown node type %q (registered: %s)", nodeType, strings.Join(f.Types(), ", ")))
	}
	if config == nil {
		config = map[string]any{}
	}
	node, err := builder(config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nodeType, err)
	}
	return node, nil
}
