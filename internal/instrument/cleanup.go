package instrument

import (
	"context"
	"fmt"
	"log"
	"time"

	"toolhub-backend/internal/store"
)

// StartCleanup deletes events older than retentionDays once a day.
// Returns a stop function.
func StartCleanup(s *store.Store, retentionDays int) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(24 * time.Hour)

	deleteOld := func() {
		ctx := context.Background()
		pb := s.Dialect.NewParamBuilder()
		cond := s.Dialect.IntervalDeleteExpr("created_at", pb, fmt.Sprintf("%d", retentionDays))
		n, err := store.Exec(ctx, s.DB, "DELETE FROM _events WHERE "+cond, pb.Params()...)
		if err != nil {
			log.Printf("ERROR: event cleanup: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Event cleanup removed %d rows older than %d days", n, retentionDays)
		}
	}

	go func() {
		deleteOld()
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				deleteOld()
			}
		}
	}()

	return func() { close(done) }
}
