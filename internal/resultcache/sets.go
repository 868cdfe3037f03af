package resultcache

import (
	"context"

	"github.com/rawblock/solrank/internal/apperr"
)

func batchMembersKey(parentJobID string) string { return "batch_members:" + parentJobID }

// AddBatchMember records a child job id as belonging to a batch, using
// SADD per §4.5's set-based batch-membership operations.
func (s *Store) AddBatchMember(ctx context.Context, parentJobID, childJobID string) error {
	if err := s.rdb.SAdd(ctx, batchMembersKey(parentJobID), childJobID).Err(); err != nil {
		return apperr.Wrap(apperr.ErrFatal, "resultcache: sadd batch member: "+err.Error())
	}
	return s.rdb.Expire(ctx, batchMembersKey(parentJobID), JobResultTTL).Err()
}

// RemoveBatchMember removes a child job id via SREM, e.g. when a child is
// retried under a new id.
func (s *Store) RemoveBatchMember(ctx context.Context, parentJobID, childJobID string) error {
	return s.rdb.SRem(ctx, batchMembersKey(parentJobID), childJobID).Err()
}

// BatchMembers lists all known child job ids via SMEMBERS.
func (s *Store) BatchMembers(ctx context.Context, parentJobID string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, batchMembersKey(parentJobID)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrFatal, "resultcache: smembers: "+err.Error())
	}
	return members, nil
}
