// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires this service into the WAFFLE lifecycle. app.Run calls each
// function in order: configuration, DB and storage setup, schema, one-time
// startup work, HTTP handler construction, then graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "subban-server", // used only for logging/diagnostics
	LoadConfig:     LoadConfig,      // load core + app config
	ValidateConfig: ValidateConfig,  // validate MongoDB URI and token secret
	ConnectDB:      ConnectDB,       // connect to MongoDB and init media storage
	EnsureSchema:   EnsureSchema,    // create indexes
	Startup:        Startup,         // seed admin, start background sweeps
	BuildHandler:   BuildHandler,    // build the HTTP router + middleware stack
	Shutdown:       Shutdown,        // stop sweeps and disconnect MongoDB
}
