// handlers/chat_routes.go
package handlers

import (
	"cleanup-bounty-system/middleware"
	"cleanup-bounty-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChatRoutes(app *fiber.App, chatService *services.ChatService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Bounty threads
	secured.Post("/bounties/:id/messages", chatService.PostBountyMessage())
	secured.Get("/bounties/:id/messages", chatService.ListBountyMessages())
	secured.Delete("/bounties/:id/messages/:message_id", chatService.DeleteBountyMessage())

	// Clans and clan threads
	secured.Post("/clans", chatService.CreateClan)
	secured.Post("/clans/:id/join", chatService.JoinClan)
	secured.Post("/clans/:id/messages", chatService.PostClanMessage())
	secured.Get("/clans/:id/messages", chatService.ListClanMessages())
	secured.Delete("/clans/:id/messages/:message_id", chatService.DeleteClanMessage())
}
