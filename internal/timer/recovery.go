package timer

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// DefaultRecoveryWindow is the maximum age of a snapshot that can still be restored.
const DefaultRecoveryWindow = 10 * time.Minute

// RecoveryOutcome classifies what Recover found in storage.
type RecoveryOutcome string

const (
	RecoveryNone      RecoveryOutcome = "none"
	RecoveryRestored  RecoveryOutcome = "restored"
	RecoveryStale     RecoveryOutcome = "stale"
	RecoveryCorrupted RecoveryOutcome = "corrupted"
)

// RecoveryResult is the outcome of Recover. Snapshot is set only when Restored.
type RecoveryResult struct {
	Outcome  RecoveryOutcome
	Snapshot *model.TimerSnapshot
	Gap      time.Duration
}

// Restored reports whether a snapshot was recovered.
func (r RecoveryResult) Restored() bool {
	return r.Outcome == RecoveryRestored
}

// Recover reads the persisted snapshot once and removes it from storage regardless of
// outcome. Snapshots whose lastActiveTime is at least window old are discarded. Storage
// and decoding failures are treated as absent state and only logged.
func Recover(store Storage, now time.Time, window time.Duration, logger *zap.Logger) RecoveryResult {
	logger = logging.OrNop(logger)
	if window <= 0 {
		window = DefaultRecoveryWindow
	}
	if store == nil {
		return RecoveryResult{Outcome: RecoveryNone}
	}

	raw, ok, err := store.Get(SnapshotKey)
	defer func() {
		if err := store.Remove(SnapshotKey); err != nil {
			logger.Warn("failed to clear timer snapshot after recovery", zap.Error(err))
		}
	}()
	if err != nil {
		logger.Warn("failed to read timer snapshot, starting idle", zap.Error(err))
		return RecoveryResult{Outcome: RecoveryCorrupted}
	}
	if !ok || raw == "" {
		return RecoveryResult{Outcome: RecoveryNone}
	}

	var snap model.TimerSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		logger.Warn("failed to decode timer snapshot, starting idle", zap.Error(err))
		return RecoveryResult{Outcome: RecoveryCorrupted}
	}
	if !valid(snap) {
		logger.Warn("discarding inconsistent timer snapshot",
			zap.Bool("running", snap.IsRunning),
			zap.Bool("paused", snap.IsPaused),
			zap.Int("remaining", snap.RemainingTime),
		)
		return RecoveryResult{Outcome: RecoveryCorrupted}
	}

	gap := now.Sub(snap.LastActiveTime)
	if gap >= window {
		logger.Info("discarding stale timer snapshot",
			zap.Duration("gap", gap),
			zap.Duration("window", window),
		)
		return RecoveryResult{Outcome: RecoveryStale, Gap: gap}
	}
	logger.Info("recovered timer snapshot",
		zap.Duration("gap", gap),
		zap.String("session_type", string(snap.SessionType)),
		zap.Int("remaining", snap.RemainingTime),
	)
	return RecoveryResult{Outcome: RecoveryRestored, Snapshot: &snap, Gap: gap}
}

func valid(s model.TimerSnapshot) bool {
	if s.IsPaused && !s.IsRunning {
		return false
	}
	if s.RemainingTime < 0 || s.LastActiveTime.IsZero() {
		return false
	}
	return s.SessionType.Valid()
}
