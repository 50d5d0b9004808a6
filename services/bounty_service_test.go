package services

import (
	"sync"
	"testing"

	"cleanup-bounty-system/geotag"
	"cleanup-bounty-system/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory
	// database and serializes concurrent transactions.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Bounty{},
		&models.VerificationJob{},
		&models.ChatMessage{},
		&models.Clan{},
		&models.ClanMember{},
		&models.PointAward{},
		&models.UserScore{},
		&models.SyncedReport{},
	))
	return db
}

func newTestBountyService(t *testing.T) *BountyService {
	t.Helper()
	db := setupTestDB(t)
	return NewBountyService(db, NewPointsService(db))
}

func embeddedEvidence(role geotag.Role) geotag.Evidence {
	return geotag.Evidence{
		Role:       role,
		Provenance: geotag.ProvenanceDeviceEmbedded,
		Location:   &geotag.Coordinates{Latitude: 6.5244, Longitude: 3.3792},
	}
}

func substitutedEvidence(role geotag.Role) geotag.Evidence {
	return geotag.Evidence{
		Role:        role,
		Provenance:  geotag.ProvenanceSnapshotSubstituted,
		Location:    &geotag.Coordinates{Latitude: 6.52, Longitude: 3.38},
		Substituted: true,
	}
}

func mustCreateBounty(t *testing.T, s *BountyService, reporterID string) *models.Bounty {
	t.Helper()
	bounty, err := s.createBounty(CreateBountyInput{
		ReporterID: reporterID,
		Evidence:   embeddedEvidence(geotag.RoleReport),
		PhotoURL:   "/uploads/reports/test.jpg",
	})
	require.NoError(t, err)
	return bounty
}

func TestCreateBountyAwardsCreationBonus(t *testing.T) {
	s := newTestBountyService(t)

	bounty, err := s.createBounty(CreateBountyInput{
		ReporterID:  "reporter-1",
		Evidence:    substitutedEvidence(geotag.RoleReport),
		PhotoURL:    "/uploads/reports/a.jpg",
		PlaceCity:   "lagos",
		PlaceRegion: "lagos state",
	})
	require.NoError(t, err)

	assert.Equal(t, models.BountyOpen, bounty.State)
	assert.Equal(t, int64(DefaultBountyPoints), bounty.PointValue)
	assert.Equal(t, string(geotag.ProvenanceSnapshotSubstituted), bounty.ReportProvenance)
	assert.Equal(t, "Lagos", bounty.PlaceCity)
	assert.Contains(t, bounty.Slug, "lagos-lagos-state")

	var score models.UserScore
	require.NoError(t, s.DB.First(&score, "user_id = ?", "reporter-1").Error)
	assert.Equal(t, int64(CreationBonusPoints), score.TotalPoints)
	assert.Equal(t, int64(1), score.BountiesReported)

	var awards int64
	require.NoError(t, s.DB.Model(&models.PointAward{}).Where("user_id = ?", "reporter-1").Count(&awards).Error)
	assert.Equal(t, int64(1), awards)
}

func TestCreateBountyRejectsUnverifiedReport(t *testing.T) {
	s := newTestBountyService(t)

	_, err := s.createBounty(CreateBountyInput{
		ReporterID: "reporter-1",
		Evidence:   geotag.Evidence{Role: geotag.RoleReport, Provenance: geotag.ProvenanceUnverified},
		PhotoURL:   "/uploads/reports/a.jpg",
	})
	assert.ErrorIs(t, err, ErrUnverifiedEvidence)

	var bounties int64
	require.NoError(t, s.DB.Model(&models.Bounty{}).Count(&bounties).Error)
	assert.Zero(t, bounties, "no bounty may be created from unverified evidence")

	var score models.UserScore
	err = s.DB.First(&score, "user_id = ?", "reporter-1").Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "reporter earns zero points")
}

func TestClaimIsExclusive(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")

	claimed, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)
	assert.Equal(t, models.BountyClaimed, claimed.State)
	require.NotNil(t, claimed.ClaimantID)
	assert.Equal(t, "cleaner-a", *claimed.ClaimantID)
	assert.NotNil(t, claimed.ClaimedAt)

	_, err = s.claimBounty(bounty.ID, "cleaner-b")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	var after models.Bounty
	require.NoError(t, s.DB.First(&after, "id = ?", bounty.ID).Error)
	assert.Equal(t, "cleaner-a", *after.ClaimantID, "losing claim must not overwrite the winner")
}

func TestConcurrentClaimsYieldOneWinner(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, claimant := range []string{"cleaner-a", "cleaner-b"} {
		wg.Add(1)
		go func(i int, claimant string) {
			defer wg.Done()
			_, errs[i] = s.claimBounty(bounty.ID, claimant)
		}(i, claimant)
	}
	wg.Wait()

	winners := 0
	losers := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, ErrAlreadyClaimed):
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	var after models.Bounty
	require.NoError(t, s.DB.First(&after, "id = ?", bounty.ID).Error)
	require.NotNil(t, after.ClaimantID)
}

func TestClaimUnknownBounty(t *testing.T) {
	s := newTestBountyService(t)
	_, err := s.claimBounty("nope", "cleaner-a")
	assert.ErrorIs(t, err, ErrBountyNotFound)
}

func TestSubmitCleanupHappyPath(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")
	_, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)

	submitted, err := s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-a",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      substitutedEvidence(geotag.RoleAfter),
		BeforeURL:  "/uploads/cleanups/before/b.jpg",
		AfterURL:   "/uploads/cleanups/after/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BountyCleanupSubmitted, submitted.State)
	assert.NotNil(t, submitted.SubmittedAt)

	var job models.VerificationJob
	require.NoError(t, s.DB.First(&job, "bounty_id = ?", bounty.ID).Error)
	assert.Equal(t, models.VerificationPending, job.Status)
}

func TestSubmitCleanupByNonClaimant(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")
	_, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)

	_, err = s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-b",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      embeddedEvidence(geotag.RoleAfter),
	})
	assert.ErrorIs(t, err, ErrNotClaimant)

	var after models.Bounty
	require.NoError(t, s.DB.First(&after, "id = ?", bounty.ID).Error)
	assert.Equal(t, models.BountyClaimed, after.State, "state unchanged after rejected submission")
}

func TestSubmitCleanupFromWrongState(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")

	_, err := s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-a",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      embeddedEvidence(geotag.RoleAfter),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitCleanupRequiresVerifiedPhotos(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")
	_, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)

	_, err = s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-a",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      geotag.Evidence{Role: geotag.RoleAfter, Provenance: geotag.ProvenanceUnverified},
	})
	assert.ErrorIs(t, err, ErrUnverifiedEvidence)
}

func TestResolveVerifiedPaysClaimant(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")
	_, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)
	_, err = s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-a",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      embeddedEvidence(geotag.RoleAfter),
	})
	require.NoError(t, err)

	resolved, err := s.ResolveOutcome(bounty.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BountyVerified, resolved.State)
	assert.NotNil(t, resolved.ResolvedAt)

	var score models.UserScore
	require.NoError(t, s.DB.First(&score, "user_id = ?", "cleaner-a").Error)
	assert.Equal(t, bounty.PointValue, score.TotalPoints)
	assert.Equal(t, int64(1), score.BountiesCleaned)

	// Verified is terminal.
	_, err = s.ResolveOutcome(bounty.ID, false, []string{"late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.claimBounty(bounty.ID, "cleaner-b")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestResolveRejectedReopensBounty(t *testing.T) {
	s := newTestBountyService(t)
	bounty := mustCreateBounty(t, s, "reporter-1")
	_, err := s.claimBounty(bounty.ID, "cleaner-a")
	require.NoError(t, err)
	_, err = s.submitCleanup(CleanupInput{
		BountyID:   bounty.ID,
		ClaimantID: "cleaner-a",
		Before:     embeddedEvidence(geotag.RoleBefore),
		After:      embeddedEvidence(geotag.RoleAfter),
	})
	require.NoError(t, err)

	resolved, err := s.ResolveOutcome(bounty.ID, false, []string{"site still littered", "after photo too dark"})
	require.NoError(t, err)
	assert.Equal(t, models.BountyOpen, resolved.State)
	assert.Nil(t, resolved.ClaimantID, "claim is released on rejection")
	assert.Equal(t, 1, resolved.RejectionCount)
	assert.Contains(t, resolved.RejectionReasons, "site still littered")

	// No payout for the failed attempt.
	var score models.UserScore
	err = s.DB.First(&score, "user_id = ?", "cleaner-a").Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Another claimant may pick it up again.
	reclaimed, err := s.claimBounty(bounty.ID, "cleaner-b")
	require.NoError(t, err)
	assert.Equal(t, "cleaner-b", *reclaimed.ClaimantID)
}
