// services/sync_service.go
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"cleanup-bounty-system/geotag"
	"cleanup-bounty-system/models"
	"cleanup-bounty-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SyncService is the receiving end of the field client's offline
// submission queue. Batches are idempotent: the content fingerprint of
// an already-processed item short-circuits to its recorded outcome, so
// a redelivered batch is safely ignorable.
type SyncService struct {
	DB       *gorm.DB
	Bounties *BountyService
}

func NewSyncService(db *gorm.DB, bounties *BountyService) *SyncService {
	return &SyncService{DB: db, Bounties: bounties}
}

// SyncSnapshot is a device location read captured alongside the photo,
// replayed through the validator on delivery.
type SyncSnapshot struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	TakenAt   time.Time `json:"taken_at"`
}

type SyncReportItem struct {
	Fingerprint   string        `json:"fingerprint"`
	Filename      string        `json:"filename"`
	Image         string        `json:"image"` // base64-encoded photo bytes
	Role          string        `json:"role"`
	CaptureSource string        `json:"capture_source"`
	PlaceCity     string        `json:"place_city,omitempty"`
	PlaceRegion   string        `json:"place_region,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
	Snapshot      *SyncSnapshot `json:"snapshot,omitempty"`
}

type SyncResult struct {
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"` // created, duplicate, rejected
	BountyID    string `json:"bounty_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// HandleSyncBatch processes one drained queue batch. Item failures
// never fail the batch: each item gets its own result so the client can
// clear its queue in full.
func (s *SyncService) HandleSyncBatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Reports []SyncReportItem `json:"reports"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if len(req.Reports) == 0 {
		return c.JSON(fiber.Map{"results": []SyncResult{}})
	}

	results := make([]SyncResult, 0, len(req.Reports))
	for _, item := range req.Reports {
		results = append(results, s.processItem(c.Context(), userID, item))
	}

	log.Printf("📦 Sync batch from %s: %d item(s)", userID, len(results))
	return c.JSON(fiber.Map{"results": results})
}

func (s *SyncService) processItem(ctx context.Context, userID string, item SyncReportItem) SyncResult {
	if item.Fingerprint == "" {
		return SyncResult{Status: "rejected", Reason: "missing fingerprint"}
	}
	result := SyncResult{Fingerprint: item.Fingerprint}

	var prior models.SyncedReport
	err := s.DB.First(&prior, "fingerprint = ?", item.Fingerprint).Error
	if err == nil {
		result.Status = "duplicate"
		if prior.BountyID != nil {
			result.BountyID = *prior.BountyID
		}
		result.Reason = prior.Reason
		return result
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		result.Status = "rejected"
		result.Reason = "storage error"
		return result
	}

	if geotag.Role(item.Role) != geotag.RoleReport {
		return s.reject(userID, item, result, "only report payloads may be synced offline")
	}
	source, ok := parseCaptureSource(item.CaptureSource)
	if !ok {
		return s.reject(userID, item, result, "unknown capture source")
	}

	data, err := base64.StdEncoding.DecodeString(item.Image)
	if err != nil || len(data) == 0 {
		return s.reject(userID, item, result, "payload is not valid base64 image data")
	}

	provider := geotag.SnapshotProvider(geotag.DeniedProvider{})
	if item.Snapshot != nil {
		provider = geotag.StaticProvider{Coords: geotag.Coordinates{
			Latitude:  item.Snapshot.Latitude,
			Longitude: item.Snapshot.Longitude,
		}}
	}

	validator := geotag.NewValidator(geotag.ExifReader{}, provider)
	evidence, err := validator.Validate(ctx, data, geotag.RoleReport, source)
	if err != nil {
		return s.reject(userID, item, result, "camera photo has no embedded location evidence")
	}
	if !evidence.Verified() {
		return s.reject(userID, item, result, "report photo location could not be verified")
	}

	url, err := utils.StorePhoto(photoKey("reports", item.PlaceCity, item.PlaceRegion, item.Filename), "image/jpeg", data)
	if err != nil {
		result.Status = "rejected"
		result.Reason = "failed to store photo"
		return result
	}

	bounty, err := s.Bounties.createBounty(CreateBountyInput{
		ReporterID:  userID,
		Evidence:    evidence,
		PhotoURL:    url,
		PlaceCity:   item.PlaceCity,
		PlaceRegion: item.PlaceRegion,
	})
	if err != nil {
		return s.reject(userID, item, result, err.Error())
	}

	s.record(userID, item, models.SyncAccepted, "", &bounty.ID)
	result.Status = "created"
	result.BountyID = bounty.ID
	return result
}

// reject records a permanent per-item failure so redelivery of the
// same fingerprint does not retry a payload that can never succeed.
func (s *SyncService) reject(userID string, item SyncReportItem, result SyncResult, reason string) SyncResult {
	s.record(userID, item, models.SyncRejected, reason, nil)
	result.Status = "rejected"
	result.Reason = reason
	return result
}

func (s *SyncService) record(userID string, item SyncReportItem, status, reason string, bountyID *string) {
	captured := item.CapturedAt
	report := models.SyncedReport{
		Fingerprint: item.Fingerprint,
		ReporterID:  userID,
		Filename:    item.Filename,
		Status:      status,
		Reason:      reason,
		BountyID:    bountyID,
	}
	if !captured.IsZero() {
		report.CapturedAt = &captured
	}
	if err := s.DB.Create(&report).Error; err != nil {
		log.Printf("⚠️ Failed to record synced report %s: %v", item.Fingerprint, err)
	}
}
