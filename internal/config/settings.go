package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

const (
	DefaultSleepThreshold = 90 * time.Second
	DefaultRecoveryWindow = 10 * time.Minute
	DefaultTickInterval   = time.Second
	DefaultPollInterval   = time.Minute
	DefaultCompanionURL   = "http://127.0.0.1:7420"
	DefaultServeAddr      = "127.0.0.1:7420"
	DefaultMaxRetries     = 2
	DefaultRetryBackoff   = 250 * time.Millisecond
	DefaultRateLimit      = 5.0
	DefaultBurst          = 5
)

// Settings is the resolved configuration after defaults, file and environment.
type Settings struct {
	Timer     TimerSettings
	Companion CompanionSettings
	APIURL    string
	Review    ReviewSettings
	Log       LogSettings
	Serve     ServeSettings
}

// TimerSettings controls the state machine thresholds.
type TimerSettings struct {
	DefaultType    model.SessionType
	SleepThreshold time.Duration
	RecoveryWindow time.Duration
	TickInterval   time.Duration
}

// CompanionSettings controls the background sync client.
type CompanionSettings struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64
	Burst        int
}

// ReviewSettings controls the review poll.
type ReviewSettings struct {
	PollInterval time.Duration
}

// LogSettings controls logger construction.
type LogSettings struct {
	Level  string
	Format string
	File   string
}

// ServeSettings controls `focus serve`.
type ServeSettings struct {
	Addr string
	DB   string
}

// DefaultSettings returns built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Timer: TimerSettings{
			DefaultType:    model.SessionDeepWork,
			SleepThreshold: DefaultSleepThreshold,
			RecoveryWindow: DefaultRecoveryWindow,
			TickInterval:   DefaultTickInterval,
		},
		Companion: CompanionSettings{
			URL:          DefaultCompanionURL,
			MaxRetries:   DefaultMaxRetries,
			RetryBackoff: DefaultRetryBackoff,
			RateLimit:    DefaultRateLimit,
			Burst:        DefaultBurst,
		},
		APIURL: DefaultCompanionURL,
		Review: ReviewSettings{PollInterval: DefaultPollInterval},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
			File:   DefaultLogPath(),
		},
		Serve: ServeSettings{
			Addr: DefaultServeAddr,
			DB:   DefaultServerDBPath(),
		},
	}
}

// Resolve overlays the file config on top of defaults.
func (fc FileConfig) Resolve() (Settings, error) {
	s := DefaultSettings()
	if fc.Timer.DefaultType != nil {
		t, err := model.ParseSessionType(*fc.Timer.DefaultType)
		if err != nil {
			return Settings{}, fmt.Errorf("timer.default-type: %w", err)
		}
		s.Timer.DefaultType = t
	}
	setDuration(&s.Timer.SleepThreshold, fc.Timer.SleepThreshold)
	setDuration(&s.Timer.RecoveryWindow, fc.Timer.RecoveryWindow)
	setDuration(&s.Timer.TickInterval, fc.Timer.TickInterval)

	apiFollowsCompanion := fc.API.URL == nil
	setString(&s.Companion.URL, fc.Companion.URL)
	setInt(&s.Companion.MaxRetries, fc.Companion.MaxRetries)
	setDuration(&s.Companion.RetryBackoff, fc.Companion.RetryBackoff)
	if fc.Companion.RateLimit != nil {
		s.Companion.RateLimit = *fc.Companion.RateLimit
	}
	setInt(&s.Companion.Burst, fc.Companion.Burst)
	if apiFollowsCompanion {
		s.APIURL = s.Companion.URL
	} else {
		s.APIURL = *fc.API.URL
	}

	setDuration(&s.Review.PollInterval, fc.Review.PollInterval)
	setString(&s.Log.Level, fc.Log.Level)
	setString(&s.Log.Format, fc.Log.Format)
	setString(&s.Log.File, fc.Log.File)
	setString(&s.Serve.Addr, fc.Serve.Addr)
	setString(&s.Serve.DB, fc.Serve.DB)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks settings for errors.
func (s Settings) Validate() error {
	if s.Timer.SleepThreshold <= s.Timer.TickInterval {
		return fmt.Errorf("timer.sleep-threshold must be greater than timer.tick-interval")
	}
	if s.Timer.RecoveryWindow <= 0 {
		return fmt.Errorf("timer.recovery-window must be > 0")
	}
	if s.Timer.TickInterval <= 0 {
		return fmt.Errorf("timer.tick-interval must be > 0")
	}
	if s.Review.PollInterval <= 0 {
		return fmt.Errorf("review.poll-interval must be > 0")
	}
	if s.Companion.MaxRetries < 0 {
		return fmt.Errorf("companion.max-retries must be >= 0")
	}
	if s.Companion.RateLimit < 0 {
		return fmt.Errorf("companion.rate-limit must be >= 0")
	}
	for name, raw := range map[string]string{"companion.url": s.Companion.URL, "api.url": s.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if s.Log.Format != "json" && s.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", s.Log.Format)
	}
	return nil
}

func setDuration(target *time.Duration, value *Duration) {
	if value == nil {
		return
	}
	*target = value.Duration()
}

func setString(target, value *string) {
	if value == nil {
		return
	}
	*target = *value
}

func setInt(target, value *int) {
	if value == nil {
		return
	}
	*target = *value
}
