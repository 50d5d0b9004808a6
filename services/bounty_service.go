// services/bounty_service.go
package services

import (
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cleanup-bounty-system/geotag"
	"cleanup-bounty-system/models"
	"cleanup-bounty-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var (
	ErrBountyNotFound     = errors.New("bounty not found")
	ErrAlreadyClaimed     = errors.New("bounty already claimed")
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrNotClaimant        = errors.New("cleanup may only be submitted by the active claimant")
	ErrUnverifiedEvidence = errors.New("photo evidence is unverified")
)

var placeTitle = cases.Title(language.Und)

// BountyService owns the bounty state machine. Every transition is a
// single transaction: read state, check the guard, write state.
type BountyService struct {
	DB     *gorm.DB
	Points *PointsService
}

func NewBountyService(db *gorm.DB, points *PointsService) *BountyService {
	return &BountyService{DB: db, Points: points}
}

type CreateBountyInput struct {
	ReporterID  string
	Evidence    geotag.Evidence
	PhotoURL    string
	PointValue  int64
	PlaceCity   string
	PlaceRegion string
}

// createBounty opens a new bounty from validated report evidence. A
// report is the foundational evidence and may not be unverifiable.
func (s *BountyService) createBounty(in CreateBountyInput) (*models.Bounty, error) {
	if !in.Evidence.Verified() || in.Evidence.Location == nil {
		return nil, ErrUnverifiedEvidence
	}

	pointValue := in.PointValue
	if pointValue <= 0 {
		pointValue = DefaultBountyPoints
	}

	city := placeTitle.String(strings.ToLower(strings.TrimSpace(in.PlaceCity)))
	region := placeTitle.String(strings.ToLower(strings.TrimSpace(in.PlaceRegion)))

	id := uuid.NewString()
	bounty := &models.Bounty{
		ID:               id,
		Slug:             bountySlug(id, city, region),
		ReporterID:       in.ReporterID,
		Latitude:         in.Evidence.Location.Latitude,
		Longitude:        in.Evidence.Location.Longitude,
		PlaceCity:        city,
		PlaceRegion:      region,
		PointValue:       pointValue,
		State:            models.BountyOpen,
		ReportPhotoURL:   in.PhotoURL,
		ReportProvenance: string(in.Evidence.Provenance),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bounty).Error; err != nil {
			return err
		}
		if err := s.Points.Award(tx, in.ReporterID, CreationBonusPoints, "bounty_reported", id); err != nil {
			return err
		}
		return s.Points.IncrementCounter(tx, in.ReporterID, "bounties_reported")
	})
	if err != nil {
		return nil, err
	}
	return bounty, nil
}

// claimBounty moves open → claimed with a conditional update so that
// two simultaneous claims yield exactly one winner. The losing side
// gets ErrAlreadyClaimed.
func (s *BountyService) claimBounty(bountyID, claimantID string) (*models.Bounty, error) {
	now := time.Now()
	res := s.DB.Model(&models.Bounty{}).
		Where("id = ? AND state = ?", bountyID, models.BountyOpen).
		Updates(map[string]interface{}{
			"state":       models.BountyClaimed,
			"claimant_id": claimantID,
			"claimed_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := s.DB.Model(&models.Bounty{}).Where("id = ?", bountyID).Count(&exists).Error; err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, ErrBountyNotFound
		}
		return nil, ErrAlreadyClaimed
	}

	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", bountyID).Error; err != nil {
		return nil, err
	}
	return &bounty, nil
}

type CleanupInput struct {
	BountyID   string
	ClaimantID string
	Before     geotag.Evidence
	After      geotag.Evidence
	BeforeURL  string
	AfterURL   string
}

// submitCleanup attaches before/after evidence and hands the bounty to
// the verification engine. Only the active claimant may submit, and
// neither photo may carry unverified provenance.
func (s *BountyService) submitCleanup(in CleanupInput) (*models.Bounty, error) {
	if !in.Before.Verified() || !in.After.Verified() {
		return nil, ErrUnverifiedEvidence
	}

	var out *models.Bounty
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bounty models.Bounty
		if err := tx.First(&bounty, "id = ?", in.BountyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBountyNotFound
			}
			return err
		}
		if bounty.State != models.BountyClaimed {
			return ErrInvalidTransition
		}
		if bounty.ClaimantID == nil || *bounty.ClaimantID != in.ClaimantID {
			return ErrNotClaimant
		}

		now := time.Now()
		bounty.State = models.BountyCleanupSubmitted
		bounty.BeforePhotoURL = in.BeforeURL
		bounty.BeforeProvenance = string(in.Before.Provenance)
		bounty.AfterPhotoURL = in.AfterURL
		bounty.AfterProvenance = string(in.After.Provenance)
		bounty.SubmittedAt = &now
		if err := tx.Save(&bounty).Error; err != nil {
			return err
		}

		job := models.VerificationJob{
			ID:       uuid.NewString(),
			BountyID: bounty.ID,
			Status:   models.VerificationPending,
		}
		if err := tx.Create(&job).Error; err != nil {
			return err
		}

		out = &bounty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveOutcome applies the verification engine's verdict. Verified is
// terminal and pays out the bounty. Rejected records the reasons,
// releases the claim and reopens the bounty so another claimant may
// attempt the cleanup.
func (s *BountyService) ResolveOutcome(bountyID string, verified bool, reasons []string) (*models.Bounty, error) {
	var out *models.Bounty
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bounty models.Bounty
		if err := tx.First(&bounty, "id = ?", bountyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBountyNotFound
			}
			return err
		}
		if bounty.State != models.BountyCleanupSubmitted || bounty.ClaimantID == nil {
			return ErrInvalidTransition
		}
		claimant := *bounty.ClaimantID
		now := time.Now()

		if verified {
			bounty.State = models.BountyVerified
			bounty.ResolvedAt = &now
			if err := tx.Save(&bounty).Error; err != nil {
				return err
			}
			if err := s.Points.Award(tx, claimant, bounty.PointValue, "bounty_cleaned", bounty.ID); err != nil {
				return err
			}
			if err := s.Points.IncrementCounter(tx, claimant, "bounties_cleaned"); err != nil {
				return err
			}
		} else {
			bounty.State = models.BountyOpen
			bounty.ClaimantID = nil
			bounty.ClaimedAt = nil
			bounty.SubmittedAt = nil
			bounty.RejectionCount++
			if len(reasons) > 0 {
				joined := strings.Join(reasons, "\n")
				if bounty.RejectionReasons != "" {
					bounty.RejectionReasons += "\n" + joined
				} else {
					bounty.RejectionReasons = joined
				}
			}
			if err := tx.Save(&bounty).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.VerificationJob{}).
			Where("bounty_id = ? AND status <> ?", bounty.ID, models.VerificationDone).
			Update("status", models.VerificationDone).Error; err != nil {
			return err
		}

		out = &bounty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Handlers ---

func (s *BountyService) CreateBounty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	data, filename, contentType, err := readFormPhoto(c, "photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo file is required"})
	}

	source, ok := parseCaptureSource(c.FormValue("capture_source", string(geotag.SourceCamera)))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "capture_source must be device-camera or device-gallery"})
	}

	validator := geotag.NewValidator(geotag.ExifReader{}, snapshotProviderFromForm(c))
	evidence, err := validator.Validate(c.Context(), data, geotag.RoleReport, source)
	if err != nil {
		return bountyErrorResponse(c, err)
	}

	city := c.FormValue("place_city")
	region := c.FormValue("place_region")

	pointValue := int64(0)
	if raw := c.FormValue("point_value"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "point_value must be a non-negative integer"})
		}
		pointValue = n
	}

	url, err := utils.StorePhoto(photoKey("reports", city, region, filename), contentType, data)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store report photo", "cause": err.Error()})
	}

	bounty, err := s.createBounty(CreateBountyInput{
		ReporterID:  userID,
		Evidence:    evidence,
		PhotoURL:    url,
		PointValue:  pointValue,
		PlaceCity:   city,
		PlaceRegion: region,
	})
	if err != nil {
		return bountyErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bounty)
}

func (s *BountyService) GetBounty(c *fiber.Ctx) error {
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "bounty not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}
	return c.JSON(bounty)
}

// ListBounties returns bounties, optionally filtered by state and by
// proximity to a point (near=lat,lon with radius_km).
func (s *BountyService) ListBounties(c *fiber.Ctx) error {
	q := s.DB.Order("created_at DESC")
	if state := c.Query("state"); state != "" {
		q = q.Where("state = ?", state)
	}

	var bounties []models.Bounty
	if err := q.Limit(200).Find(&bounties).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	if near := c.Query("near"); near != "" {
		parts := strings.SplitN(near, ",", 2)
		if len(parts) != 2 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "near must be lat,lon"})
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "near must be lat,lon"})
		}
		origin := geotag.Coordinates{Latitude: lat, Longitude: lon}
		radius := c.QueryFloat("radius_km", 5)

		filtered := bounties[:0]
		for _, b := range bounties {
			d := geotag.Distance(origin, geotag.Coordinates{Latitude: b.Latitude, Longitude: b.Longitude})
			if d <= radius {
				b.DistanceKm = d
				filtered = append(filtered, b)
			}
		}
		bounties = filtered
	}

	return c.JSON(fiber.Map{"bounties": bounties, "count": len(bounties)})
}

func (s *BountyService) ClaimBounty(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	bounty, err := s.claimBounty(c.Params("id"), userID)
	if err != nil {
		return bountyErrorResponse(c, err)
	}
	return c.JSON(bounty)
}

func (s *BountyService) SubmitCleanup(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	bountyID := c.Params("id")

	beforeData, beforeName, beforeType, err := readFormPhoto(c, "before_photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "before_photo file is required"})
	}
	afterData, afterName, afterType, err := readFormPhoto(c, "after_photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "after_photo file is required"})
	}

	beforeSource, ok := parseCaptureSource(c.FormValue("before_source", string(geotag.SourceCamera)))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "before_source must be device-camera or device-gallery"})
	}
	afterSource, ok := parseCaptureSource(c.FormValue("after_source", string(geotag.SourceCamera)))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "after_source must be device-camera or device-gallery"})
	}

	validator := geotag.NewValidator(geotag.ExifReader{}, snapshotProviderFromForm(c))
	before, err := validator.Validate(c.Context(), beforeData, geotag.RoleBefore, beforeSource)
	if err != nil {
		return bountyErrorResponse(c, err)
	}
	after, err := validator.Validate(c.Context(), afterData, geotag.RoleAfter, afterSource)
	if err != nil {
		return bountyErrorResponse(c, err)
	}

	beforeURL, err := utils.StorePhoto(photoKey("cleanups/before", "", "", beforeName), beforeType, beforeData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store before photo", "cause": err.Error()})
	}
	afterURL, err := utils.StorePhoto(photoKey("cleanups/after", "", "", afterName), afterType, afterData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store after photo", "cause": err.Error()})
	}

	bounty, err := s.submitCleanup(CleanupInput{
		BountyID:   bountyID,
		ClaimantID: userID,
		Before:     before,
		After:      after,
		BeforeURL:  beforeURL,
		AfterURL:   afterURL,
	})
	if err != nil {
		return bountyErrorResponse(c, err)
	}
	return c.JSON(bounty)
}

// ResolveVerification is the callback surface for the verification
// engine (also reachable by operators through the gateway).
func (s *BountyService) ResolveVerification(c *fiber.Ctx) error {
	var req struct {
		Verified bool     `json:"verified"`
		Reasons  []string `json:"reasons"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	bounty, err := s.ResolveOutcome(c.Params("id"), req.Verified, req.Reasons)
	if err != nil {
		return bountyErrorResponse(c, err)
	}
	return c.JSON(bounty)
}

// --- Helpers ---

func bountyErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrBountyNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrAlreadyClaimed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotClaimant):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrUnverifiedEvidence):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, geotag.ErrMissingLocationEvidence):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "camera photo has no embedded location — recapture required"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "cause": err.Error()})
	}
}

func readFormPhoto(c *fiber.Ctx, field string) (data []byte, filename, contentType string, err error) {
	fileHeader, err := c.FormFile(field)
	if err != nil || fileHeader.Size == 0 {
		return nil, "", "", errors.New(field + " is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", "", err
	}
	contentType = fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, fileHeader.Filename, contentType, nil
}

func parseCaptureSource(raw string) (geotag.CaptureSource, bool) {
	switch geotag.CaptureSource(raw) {
	case geotag.SourceCamera:
		return geotag.SourceCamera, true
	case geotag.SourceGallery:
		return geotag.SourceGallery, true
	default:
		return "", false
	}
}

// snapshotProviderFromForm picks up the device location snapshot the
// client read at capture time, when it sent one. Without it the server
// has no location service to fall back on.
func snapshotProviderFromForm(c *fiber.Ctx) geotag.SnapshotProvider {
	latStr := c.FormValue("snapshot_latitude")
	lonStr := c.FormValue("snapshot_longitude")
	if latStr == "" || lonStr == "" {
		return geotag.DeniedProvider{}
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return geotag.DeniedProvider{}
	}
	return geotag.StaticProvider{Coords: geotag.Coordinates{Latitude: lat, Longitude: lon}}
}

func bountySlug(id, city, region string) string {
	hint := strings.TrimSpace(strings.TrimSpace(city) + " " + strings.TrimSpace(region))
	if hint != "" {
		return slug.Make(hint) + "-" + id[:8]
	}
	return "site-" + id[:8]
}

func photoKey(prefix, city, region, filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.NewString()
	if hint := strings.TrimSpace(strings.TrimSpace(city) + " " + strings.TrimSpace(region)); hint != "" {
		name = slug.Make(hint) + "-" + name
	}
	return prefix + "/" + name + ext
}
