// services/chat_service.go
package services

import (
	"errors"
	"strings"

	"cleanup-bounty-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	ErrForbidden     = errors.New("only the sender or the scope leader may delete a message")
	ErrScopeNotFound = errors.New("chat scope not found")
	ErrNotClanMember = errors.New("only clan members may post in the clan thread")
	ErrMsgNotFound   = errors.New("message not found")
)

// ChatService hosts the append-only message threads attached to
// bounties and clans.
type ChatService struct {
	DB *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{DB: db}
}

// leaderFor resolves who moderates a scope: the reporter for a bounty
// thread, the clan leader for a clan thread.
func (s *ChatService) leaderFor(scopeType, scopeID string) (string, error) {
	switch scopeType {
	case models.ScopeBounty:
		var bounty models.Bounty
		if err := s.DB.Select("reporter_id").First(&bounty, "id = ?", scopeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrScopeNotFound
			}
			return "", err
		}
		return bounty.ReporterID, nil
	case models.ScopeClan:
		var clan models.Clan
		if err := s.DB.Select("leader_id").First(&clan, "id = ?", scopeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrScopeNotFound
			}
			return "", err
		}
		return clan.LeaderID, nil
	default:
		return "", ErrScopeNotFound
	}
}

func (s *ChatService) isClanMember(clanID, userID string) (bool, error) {
	var clan models.Clan
	if err := s.DB.First(&clan, "id = ?", clanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrScopeNotFound
		}
		return false, err
	}
	if clan.LeaderID == userID {
		return true, nil
	}
	var count int64
	err := s.DB.Model(&models.ClanMember{}).
		Where("clan_id = ? AND user_id = ?", clanID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *ChatService) post(scopeType, scopeID, senderID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("message text is required")
	}

	// Bounty threads are open to any authenticated member of the
	// community; clan threads require membership.
	switch scopeType {
	case models.ScopeBounty:
		if _, err := s.leaderFor(scopeType, scopeID); err != nil {
			return nil, err
		}
	case models.ScopeClan:
		member, err := s.isClanMember(scopeID, senderID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrNotClanMember
		}
	default:
		return nil, ErrScopeNotFound
	}

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		ScopeType: scopeType,
		ScopeID:   scopeID,
		SenderID:  senderID,
		Text:      text,
	}
	if err := s.DB.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) list(scopeType, scopeID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.
		Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (s *ChatService) remove(scopeType, scopeID, messageID, requesterID string) error {
	var msg models.ChatMessage
	err := s.DB.
		Where("id = ? AND scope_type = ? AND scope_id = ?", messageID, scopeType, scopeID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMsgNotFound
		}
		return err
	}

	if msg.SenderID != requesterID {
		leader, err := s.leaderFor(scopeType, scopeID)
		if err != nil {
			return err
		}
		if leader != requesterID {
			return ErrForbidden
		}
	}

	return s.DB.Delete(&models.ChatMessage{}, "id = ?", msg.ID).Error
}

// --- Handlers ---

func (s *ChatService) postHandler(scopeType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}

		msg, err := s.post(scopeType, c.Params("id"), userID, req.Text)
		if err != nil {
			return chatErrorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}

func (s *ChatService) listHandler(scopeType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		messages, err := s.list(scopeType, c.Params("id"))
		if err != nil {
			return chatErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"messages": messages, "count": len(messages)})
	}
}

func (s *ChatService) deleteHandler(scopeType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		if err := s.remove(scopeType, c.Params("id"), c.Params("message_id"), userID); err != nil {
			return chatErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"deleted": true})
	}
}

func (s *ChatService) PostBountyMessage() fiber.Handler   { return s.postHandler(models.ScopeBounty) }
func (s *ChatService) ListBountyMessages() fiber.Handler  { return s.listHandler(models.ScopeBounty) }
func (s *ChatService) DeleteBountyMessage() fiber.Handler { return s.deleteHandler(models.ScopeBounty) }
func (s *ChatService) PostClanMessage() fiber.Handler     { return s.postHandler(models.ScopeClan) }
func (s *ChatService) ListClanMessages() fiber.Handler    { return s.listHandler(models.ScopeClan) }
func (s *ChatService) DeleteClanMessage() fiber.Handler   { return s.deleteHandler(models.ScopeClan) }

// CreateClan makes the caller the leader of a new clan.
func (s *ChatService) CreateClan(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	clan := &models.Clan{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		Slug:     slug.Make(req.Name),
		LeaderID: userID,
	}
	if err := s.DB.Create(clan).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "clan name already taken"})
	}
	return c.Status(fiber.StatusCreated).JSON(clan)
}

// JoinClan adds the caller to a clan's membership (idempotent).
func (s *ChatService) JoinClan(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	clanID := c.Params("id")

	var clan models.Clan
	if err := s.DB.First(&clan, "id = ?", clanID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "clan not found"})
	}

	member, err := s.isClanMember(clanID, userID)
	if err != nil {
		return chatErrorResponse(c, err)
	}
	if member {
		return c.JSON(fiber.Map{"joined": true})
	}

	if err := s.DB.Create(&models.ClanMember{
		ID:     uuid.NewString(),
		ClanID: clanID,
		UserID: userID,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to join clan", "cause": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"joined": true})
}

func chatErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotClanMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrScopeNotFound), errors.Is(err, ErrMsgNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "cause": err.Error()})
	}
}
