package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// PreferencesKey is the local storage key for the preference tree.
const PreferencesKey = "notificationPreferences"

// KV is the synchronous local storage contract.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Remote is the server mirror of the preference tree.
type Remote interface {
	GetPreferences(ctx context.Context) (model.NotificationPreferences, error)
	PutPreferences(ctx context.Context, p model.NotificationPreferences) error
}

// Preferences owns the notification preference tree. Updates replace the whole object.
type Preferences struct {
	mu        sync.RWMutex
	current   model.NotificationPreferences
	kv        KV
	remote    Remote
	logger    *zap.Logger
	listeners []func(model.NotificationPreferences)
}

// NewPreferences starts from defaults. remote may be nil for offline use.
func NewPreferences(kv KV, remote Remote, logger *zap.Logger) *Preferences {
	return &Preferences{
		current: model.DefaultPreferences(),
		kv:      kv,
		remote:  remote,
		logger:  logging.OrNop(logger),
	}
}

// Current returns a copy of the active preferences.
func (p *Preferences) Current() model.NotificationPreferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// OnChange registers fn to run after every successful load or update.
func (p *Preferences) OnChange(fn func(model.NotificationPreferences)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Load fetches preferences from the server, falling back to local storage and then
// defaults. Failures are logged, never returned.
func (p *Preferences) Load(ctx context.Context) model.NotificationPreferences {
	prefs, source := p.fetch(ctx)
	p.logger.Debug("notification preferences loaded", zap.String("source", source))
	p.commit(prefs)
	return prefs.Clone()
}

func (p *Preferences) fetch(ctx context.Context) (model.NotificationPreferences, string) {
	if p.remote != nil {
		prefs, err := p.remote.GetPreferences(ctx)
		if err == nil {
			if err := p.saveLocal(prefs); err != nil {
				p.logger.Warn("failed to cache notification preferences", zap.Error(err))
			}
			return prefs, "server"
		}
		p.logger.Warn("failed to load notification preferences from server", zap.Error(err))
	}
	if prefs, ok := p.loadLocal(); ok {
		return prefs, "local"
	}
	return model.DefaultPreferences(), "defaults"
}

// Update replaces the preferences. Local state and storage are committed before the
// server mirror is attempted; a server failure is returned but not rolled back.
func (p *Preferences) Update(ctx context.Context, prefs model.NotificationPreferences) error {
	prefs = prefs.Clone()
	if err := p.saveLocal(prefs); err != nil {
		p.logger.Warn("failed to persist notification preferences", zap.Error(err))
	}
	p.commit(prefs)
	if p.remote == nil {
		return nil
	}
	if err := p.remote.PutPreferences(ctx, prefs); err != nil {
		return fmt.Errorf("failed to sync notification preferences: %w", err)
	}
	return nil
}

// Apply runs setters against a copy of the current preferences and updates with the result.
// Nothing changes if any setter fails.
func (p *Preferences) Apply(ctx context.Context, setters ...Setter) error {
	next := p.Current()
	for _, set := range setters {
		if err := set(&next); err != nil {
			return err
		}
	}
	return p.Update(ctx, next)
}

func (p *Preferences) commit(prefs model.NotificationPreferences) {
	p.mu.Lock()
	p.current = prefs.Clone()
	listeners := append([]func(model.NotificationPreferences){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(prefs.Clone())
	}
}

func (p *Preferences) saveLocal(prefs model.NotificationPreferences) error {
	if p.kv == nil {
		return nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return p.kv.Set(PreferencesKey, string(data))
}

func (p *Preferences) loadLocal() (model.NotificationPreferences, bool) {
	if p.kv == nil {
		return model.NotificationPreferences{}, false
	}
	raw, ok, err := p.kv.Get(PreferencesKey)
	if err != nil {
		p.logger.Warn("failed to read local notification preferences", zap.Error(err))
		return model.NotificationPreferences{}, false
	}
	if !ok {
		return model.NotificationPreferences{}, false
	}
	var prefs model.NotificationPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		p.logger.Warn("discarding corrupt local notification preferences", zap.Error(err))
		return model.NotificationPreferences{}, false
	}
	return prefs, true
}
