// cmd/subban-server/main.go

// Command subban-server runs the community REST API: accounts and bearer
// token auth, admin device sessions, blogs, the photo gallery, and image
// uploads.
package main

import (
	"context"

	"github.com/dalemusser/waffle/app"

	"github.com/subbanorg/subban-server/internal/app/bootstrap"
)

func main() {
	app.Run(context.Background(), bootstrap.Hooks)
}
