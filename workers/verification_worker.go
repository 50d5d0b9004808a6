// workers/verification_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"cleanup-bounty-system/models"
	"cleanup-bounty-system/utils"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// Resolver applies a verification verdict to the bounty lifecycle.
// Implemented by services.BountyService.
type Resolver interface {
	ResolveOutcome(bountyID string, verified bool, reasons []string) (*models.Bounty, error)
}

// verdictResponse is the verification engine's answer. Anything that
// doesn't decode into this shape is rejected at the boundary.
type verdictResponse struct {
	Verified bool     `json:"verified"`
	Reasons  []string `json:"reasons"`
}

// VerificationWorker feeds submitted cleanups to the external
// verification engine and applies the outcomes. Engine downtime is
// tolerated: jobs stay pending and the next pass retries them.
type VerificationWorker struct {
	db         *gorm.DB
	resolver   Resolver
	baseURL    string
	token      string
	interval   time.Duration
	httpClient *http.Client
}

func NewVerificationWorker(db *gorm.DB, resolver Resolver, engineBaseURL, serviceToken string) *VerificationWorker {
	return &VerificationWorker{
		db:         db,
		resolver:   resolver,
		baseURL:    engineBaseURL,
		token:      serviceToken,
		interval:   30 * time.Second,
		httpClient: utils.HTTPClient,
	}
}

func (w *VerificationWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Verification Worker (cleanup_submitted → engine → resolved)…")
	go w.run(ctx)
}

func (w *VerificationWorker) run(ctx context.Context) {
	w.processPending(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.processPending(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Verification Worker stopped")
			return
		}
	}
}

func (w *VerificationWorker) processPending(ctx context.Context) {
	var jobs []models.VerificationJob
	err := w.db.
		Where("status = ?", models.VerificationPending).
		Order("created_at ASC").
		Limit(10).
		Find(&jobs).Error
	if err != nil {
		log.Printf("❌ [VERIFY] DB error fetching jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		w.processJob(ctx, job)
	}
}

func (w *VerificationWorker) processJob(ctx context.Context, job models.VerificationJob) {
	var bounty models.Bounty
	if err := w.db.First(&bounty, "id = ?", job.BountyID).Error; err != nil {
		log.Printf("❌ [VERIFY] Job %s references missing bounty %s", job.ID, job.BountyID)
		w.db.Model(&job).Update("status", models.VerificationDone)
		return
	}
	if bounty.State != models.BountyCleanupSubmitted {
		// Resolved through another path already.
		w.db.Model(&job).Update("status", models.VerificationDone)
		return
	}

	now := time.Now()
	if err := w.db.Model(&job).Updates(map[string]interface{}{
		"status":   models.VerificationSent,
		"sent_at":  now,
		"attempts": gorm.Expr("attempts + 1"),
	}).Error; err != nil {
		log.Printf("❌ [VERIFY] Failed to mark job %s sent: %v", job.ID, err)
		return
	}

	verdict, err := w.requestVerdict(ctx, bounty)
	if err != nil {
		log.Printf("⚠️ [VERIFY] Engine call failed for bounty %s: %v", bounty.ID, err)
		w.db.Model(&job).Updates(map[string]interface{}{
			"status":     models.VerificationPending,
			"last_error": err.Error(),
		})
		return
	}

	if _, err := w.resolver.ResolveOutcome(bounty.ID, verdict.Verified, verdict.Reasons); err != nil {
		log.Printf("❌ [VERIFY] Failed to resolve bounty %s: %v", bounty.ID, err)
		w.db.Model(&job).Updates(map[string]interface{}{
			"status":     models.VerificationPending,
			"last_error": err.Error(),
		})
		return
	}

	// ResolveOutcome marks the job done; this catches jobs resolved
	// while the verdict was in flight.
	w.db.Model(&job).Update("status", models.VerificationDone)
	log.Printf("✅ [VERIFY] Bounty %s resolved (verified=%t)", bounty.ID, verdict.Verified)
}

// requestVerdict posts the before/after pair to the engine, retrying
// transient failures with exponential backoff.
func (w *VerificationWorker) requestVerdict(ctx context.Context, bounty models.Bounty) (*verdictResponse, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"bounty_id":        bounty.ID,
		"before_photo_url": bounty.BeforePhotoURL,
		"after_photo_url":  bounty.AfterPhotoURL,
		"latitude":         bounty.Latitude,
		"longitude":        bounty.Longitude,
	})

	var verdict *verdictResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/verify", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+w.token)

		resp, err := w.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("engine returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("engine returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		var v verdictResponse
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("malformed engine response: %w", err)
		}
		verdict = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verdict, nil
}
