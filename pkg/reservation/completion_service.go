package reservation

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// CompleteFinished moves confirmed reservations whose end time has passed
// to completed. It returns the number of reservations it moved. Rows that
// changed state between the scan and the update are skipped.
func (s *ServiceImpl) CompleteFinished(ctx context.Context) (int, error) {
	ids, err := s.repo.FindConfirmedPastEnd(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, id := range ids {
		moved, err := s.repo.MarkCompleted(ctx, id)
		if err != nil {
			return completed, err
		}
		if moved {
			completed++
		}
	}
	if completed > 0 {
		log.Infof("Completion sweep closed %d finished reservations", completed)
	}
	return completed, nil
}
