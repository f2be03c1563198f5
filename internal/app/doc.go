// Package app wires the stress testing web server together and manages its
// lifecycle.
//
// NewApplication builds everything in dependency order: logger, resolved
// paths, OpenTelemetry, the websocket hub, the stress test and health
// services, the chi router and finally the http.Server. Nothing listens until
// Start.
//
// Run is the usual entry point:
//
//	cfg, err := config.Load("")
//	...
//	application, err := app.NewApplication(cfg)
//	...
//	return application.Run(ctx)
//
// Run returns after SIGINT, SIGTERM, cancellation of ctx or a server error.
// Shutdown drains in-flight requests, closes websocket clients, stops the run
// broadcaster and flushes telemetry. The package never calls os.Exit.
package app
