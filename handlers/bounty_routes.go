// handlers/bounty_routes.go
package handlers

import (
	"cleanup-bounty-system/middleware"
	"cleanup-bounty-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService, pointsService *services.PointsService) {
	// 🔓 Public routes — browsing needs no user context, but still
	// requires gateway auth.
	app.Get("/bounties", bountyService.ListBounties)
	app.Get("/bounties/:id", bountyService.GetBounty)
	app.Get("/leaderboard", pointsService.GetLeaderboard)

	// 🔐 Secured routes — require user context from the gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/bounties", bountyService.CreateBounty)
	secured.Post("/bounties/:id/claim", bountyService.ClaimBounty)
	secured.Post("/bounties/:id/cleanup", bountyService.SubmitCleanup)
	secured.Post("/bounties/:id/verification", bountyService.ResolveVerification)

	secured.Get("/users/me/score", pointsService.GetMyScore)
}
