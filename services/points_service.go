// services/points_service.go
package services

import (
	"log"

	"cleanup-bounty-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Point weights for lifecycle events. Redemption of accumulated points
// is handled by an external ledger service.
const (
	CreationBonusPoints = 10
	DefaultBountyPoints = 100
)

type PointsService struct {
	DB *gorm.DB
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{DB: db}
}

// EnsureScore makes sure a UserScore row exists (idempotent).
func (s *PointsService) EnsureScore(tx *gorm.DB, userID string) error {
	var score models.UserScore
	err := tx.Where("user_id = ?", userID).First(&score).Error
	if err == gorm.ErrRecordNotFound {
		return tx.Create(&models.UserScore{UserID: userID}).Error
	}
	return err
}

// Award writes a ledger entry and bumps the user's running total inside
// the caller's transaction.
func (s *PointsService) Award(tx *gorm.DB, userID string, points int64, reason, bountyID string) error {
	if err := s.EnsureScore(tx, userID); err != nil {
		return err
	}

	award := models.PointAward{
		ID:       uuid.NewString(),
		UserID:   userID,
		BountyID: bountyID,
		Points:   points,
		Reason:   reason,
	}
	if err := tx.Create(&award).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.UserScore{}).
		Where("user_id = ?", userID).
		Update("total_points", gorm.Expr("total_points + ?", points)).Error; err != nil {
		return err
	}

	log.Printf("🏅 Points awarded: %s +%d (reason: %s)", userID, points, reason)
	return nil
}

// IncrementCounter bumps one of the activity counters on UserScore.
// column must be a known counter name, never caller input.
func (s *PointsService) IncrementCounter(tx *gorm.DB, userID, column string) error {
	if err := s.EnsureScore(tx, userID); err != nil {
		return err
	}
	return tx.Model(&models.UserScore{}).
		Where("user_id = ?", userID).
		Update(column, gorm.Expr(column+" + 1")).Error
}

// Leaderboard returns the top scores in descending order.
func (s *PointsService) Leaderboard(limit int) ([]models.UserScore, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var scores []models.UserScore
	err := s.DB.Order("total_points DESC").Limit(limit).Find(&scores).Error
	return scores, err
}

// --- Handlers ---

func (s *PointsService) GetMyScore(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var score models.UserScore
	if err := s.DB.Where("user_id = ?", userID).First(&score).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(models.UserScore{UserID: userID})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "DB error fetching score",
			"cause": err.Error(),
		})
	}
	return c.JSON(score)
}

func (s *PointsService) GetLeaderboard(c *fiber.Ctx) error {
	scores, err := s.Leaderboard(c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load leaderboard",
			"cause": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"leaderboard": scores})
}
