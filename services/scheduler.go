// services/scheduler.go
package services

import (
	"log"
	"time"

	"cleanup-bounty-system/models"

	"github.com/go-co-op/gocron/v2"
)

// Verification requests that got no answer within this window are
// handed back to the worker for another attempt. The bounty itself
// stays in cleanup_submitted the whole time.
const verificationResendAfter = 10 * time.Minute

func (s *BountyService) StartVerificationScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every few minutes: requeue verification jobs the engine never
	// answered.
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-verificationResendAfter)
			res := s.DB.Model(&models.VerificationJob{}).
				Where("status = ? AND sent_at <= ?", models.VerificationSent, cutoff).
				Update("status", models.VerificationPending)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("🔁 Requeued %d stalled verification job(s)", res.RowsAffected)
			}
		}),
	)
}
