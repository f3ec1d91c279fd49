package provider

import "fmt"

// Factory 根据配置选择对应的提供商，进程启动时装配。
type Factory struct {
	providers map[string]Provider
	target    string
}

func NewFactory(cfg Config) *Factory {
	openai := NewOpenAIProvider(cfg)
	anthropic := NewAnthropicProvider(cfg)
	return &Factory{
		providers: map[string]Provider{
			openai.Name():    openai,
			anthropic.Name(): anthropic,
		},
		target: cfg.Provider,
	}
}

// Get 当前配置的提供商。
func (f *Factory) Get() (Provider, error) {
	return f.GetByName(f.target)
}

func (f *Factory) GetByName(name string) (Provider, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("未找到 AI 提供商: %s，可选: openai, anthropic", name)
	}
	return p, nil
}
