package application

import (
	"context"

	"go.uber.org/zap"
)

func cleanIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MarkRead flags the given messages read for their recipient. Ids the caller
// did not receive are ignored, so repeating the call is harmless.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.MarkRead(ctx, userID, ids, s.now())
	if err != nil {
		return 0, err
	}
	s.log.Debug("messages marked read", zap.String("user_id", userID), zap.Int64("updated", n))
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// SoftDelete hides messages from the caller's view only.
func (s *Service) SoftDelete(ctx context.Context, userID string, ids []string) (int64, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.SoftDelete(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	s.log.Debug("messages soft-deleted", zap.String("user_id", userID), zap.Int64("updated", n))
	return n, nil
}
