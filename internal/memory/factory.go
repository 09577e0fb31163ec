package memory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fitcoach/internal/config"
	"fitcoach/internal/store"
)

// NewManager builds the memory tier for one session, walking the fallback
// chain remote -> buffered -> ephemeral. Construction never fails: a store
// problem degrades the tier and logs, it does not block the conversation.
//
// Anonymous interactions (empty subjectID) always get the ephemeral tier;
// there is no identity to persist under.
func NewManager(ctx context.Context, st store.Store, sessionID, subjectID string, cfg config.MemoryConfig, logger *zap.Logger) Manager {
	policy := PolicyFor(cfg.Mode)

	if subjectID == "" || st == nil {
		logger.Debug("memory tier selected",
			zap.String("tier", "ephemeral"),
			zap.String("mode", string(policy.Mode)))
		return newEphemeralManager(policy)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if sc, err := st.SetSubjectContext(probeCtx, subjectID); err == nil {
		probeCtx = sc
	}
	if _, err := st.RecentMessages(probeCtx, sessionID, 1); err != nil {
		if errors.Is(err, store.ErrUnreachable) {
			logger.Warn("store unreachable, degrading to buffered memory",
				zap.String("session", sessionID))
		} else {
			logger.Warn("store probe failed, degrading to buffered memory",
				zap.String("session", sessionID),
				zap.Error(err))
		}
		return newBufferedManager(st, sessionID, subjectID, policy, cfg.WriteQueueSize, logger)
	}

	logger.Debug("memory tier selected",
		zap.String("tier", "remote"),
		zap.String("session", sessionID),
		zap.String("mode", string(policy.Mode)))
	return newRemoteManager(st, sessionID, subjectID, policy, cfg.WriteQueueSize, logger)
}
