// handlers/sync_routes.go
package handlers

import (
	"cleanup-bounty-system/middleware"
	"cleanup-bounty-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSyncRoutes(app *fiber.App, syncService *services.SyncService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Offline batch intake. Replays of an already-accepted batch are
	// deduplicated by content fingerprint.
	secured.Post("/sync/reports", syncService.HandleSyncBatch)
}
