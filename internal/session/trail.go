package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
)

const trailKeyPrefix = "session:trail:"

// KV is the write-behind key/value surface trails are persisted through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(key string, value []byte)
}

// StoreTrail persists session trails as JSON documents keyed by session id.
// A session recreated under the same id starts a fresh document; the full
// history stays in the audit stream.
type StoreTrail struct {
	kv     KV
	logger *slog.Logger
}

func NewStoreTrail(kv KV, logger *slog.Logger) *StoreTrail {
	return &StoreTrail{kv: kv, logger: logger}
}

func (s *StoreTrail) SaveTrail(ctx context.Context, sessionID string, trail []TrailEntry) {
	payload, err := json.Marshal(trail)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to encode session trail", "session_id", sessionID, "error", err)
		}
		return
	}
	s.kv.Set(trailKeyPrefix+sessionID, payload)
}

// Trail loads the persisted trail for a session.
func (s *StoreTrail) Trail(ctx context.Context, sessionID string) ([]TrailEntry, error) {
	raw, err := s.kv.Get(ctx, trailKeyPrefix+sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no trail recorded for session")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session trail")
	}
	var trail []TrailEntry
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt session trail")
	}
	return trail, nil
}
