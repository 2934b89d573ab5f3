package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
// 1. Config (no dependencies)
// 2. Logger (depends on Config)
// 3. Signer (no dependencies; resolves AWS credentials lazily)
// 4. Registry (depends on Config, Signer)
// 5. Engine (depends on Config)
// 6. Collector (depends on Config, Logger)
// 7. Handler (depends on Registry, Engine, Collector, Config)
// 8. Router (depends on Handler, Logger)
// 9. Server (depends on Router, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewSigner)
	do.Provide(i, NewRegistry)
	do.Provide(i, NewEngine)
	do.Provide(i, NewCollector)
	do.Provide(i, NewProxyHandler)
	do.Provide(i, NewRouter)
	do.Provide(i, NewHTTPServer)
}
