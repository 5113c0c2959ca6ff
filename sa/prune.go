package sa

import (
	"context"
	"time"
)

// Prune deletes events whose expiration tag lapsed before the given cutoff.
// Query already hides them, but the rows otherwise sit in the table forever;
// this is the maintenance sweep that reclaims them. It is not on the hot
// admission path.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.dbMap.WithContext(ctx).Exec(
		"DELETE FROM events WHERE expiration_tag IS NOT NULL AND expiration_tag < ?",
		olderThan.Unix(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.scope.Inc("pruned", n)
	s.log.Info().Int64("events", n).Msg("pruned expired events")
	return n, nil
}
