package di

import (
	"net/http"

	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/proxy"
)

// HandlerService wraps the proxy dispatch handler.
type HandlerService struct {
	Handler http.Handler
}

// NewProxyHandler creates the /v1/ dispatch handler.
func NewProxyHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	registrySvc := do.MustInvoke[*RegistryService](i)
	engineSvc := do.MustInvoke[*EngineService](i)
	collectorSvc := do.MustInvoke[*CollectorService](i)

	handler := proxy.NewHandler(
		registrySvc.Registry,
		engineSvc.Engine,
		collectorSvc.Collector,
		cfgSvc.Config.Proxy,
		cfgSvc.Config.Telemetry.MaxStreamedChunks,
	)

	return &HandlerService{Handler: handler}, nil
}

// RouterService wraps the full route table with middleware applied.
type RouterService struct {
	Router http.Handler
}

// NewRouter assembles the route table around the dispatch handler.
func NewRouter(i do.Injector) (*RouterService, error) {
	handlerSvc := do.MustInvoke[*HandlerService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	return &RouterService{Router: proxy.NewRouter(handlerSvc.Handler, loggerSvc.Logger)}, nil
}
