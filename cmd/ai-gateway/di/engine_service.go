package di

import (
	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/proxy"
)

// EngineService wraps the streaming proxy engine.
type EngineService struct {
	Engine *proxy.Engine
}

// NewEngine creates the proxy engine with its pooled upstream client.
func NewEngine(i do.Injector) (*EngineService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	engine := proxy.NewEngine(proxy.NewHTTPClient(), cfgSvc.Config.Proxy)

	return &EngineService{Engine: engine}, nil
}
