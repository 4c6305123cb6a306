// Package handlers contains reusable HTTP building blocks: the composite
// health checker and middleware for API-key auth, per-client rate limiting,
// security headers and request size limits.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("postgres_pool", handlers.NewPoolCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddCheck("catalog", handlers.NewBreakerCheck(catalogClient))
//
// # Middleware
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", cfg.APIKeyHashes)
//	limiter := handlers.NewIPRateLimiter(20, 40)
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    limiter.Middleware,
//	    auth.Middleware,
//	)
package handlers
