// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// SessionType identifies the kind of focus session.
type SessionType string

const (
	SessionDeepWork  SessionType = "deep_work"
	SessionQuickTask SessionType = "quick_task"
	SessionBreak     SessionType = "break"
	SessionCustom    SessionType = "custom"
)

// SessionTypes lists every known session type in display order.
var SessionTypes = []SessionType{SessionDeepWork, SessionQuickTask, SessionBreak, SessionCustom}

// DefaultDuration returns the default planned duration in minutes for the type.
func (t SessionType) DefaultDuration() int {
	switch t {
	case SessionDeepWork:
		return 50
	case SessionQuickTask:
		return 15
	case SessionBreak:
		return 10
	default:
		return 25
	}
}

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	for _, st := range SessionTypes {
		if st == t {
			return true
		}
	}
	return false
}

// ParseSessionType converts a user supplied value into a SessionType.
func ParseSessionType(v string) (SessionType, error) {
	t := SessionType(v)
	if !t.Valid() {
		return "", fmt.Errorf("unknown session type %q", v)
	}
	return t, nil
}

// Session is the unit of work tracked by the collaborator API.
// ID stays empty until the create request succeeds; LocalID correlates responses.
type Session struct {
	ID              string      `json:"id,omitempty"`
	LocalID         string      `json:"localId"`
	TaskID          string      `json:"taskId,omitempty"`
	CategoryID      string      `json:"categoryId,omitempty"`
	SessionType     SessionType `json:"sessionType"`
	StartTime       time.Time   `json:"startTime"`
	PlannedDuration int         `json:"plannedDuration"`
	Completed       bool        `json:"completed"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// TimerSnapshot is the serializable state of one timer instance.
type TimerSnapshot struct {
	IsRunning             bool        `json:"isRunning"`
	IsPaused              bool        `json:"isPaused"`
	SessionType           SessionType `json:"sessionType"`
	PlannedDuration       int         `json:"plannedDuration"`
	RemainingTime         int         `json:"remainingTime"`
	StartTime             *time.Time  `json:"startTime"`
	LastTickTime          *time.Time  `json:"lastTickTime"`
	LastActiveTime        time.Time   `json:"lastActiveTime"`
	IsSystemSleepDetected bool        `json:"isSystemSleepDetected"`
	CurrentSession        *Session    `json:"currentSession"`
}

// IdleSnapshot returns the idle defaults for the given session type.
// RemainingTime stays zero until a duration is chosen or a session starts.
func IdleSnapshot(t SessionType, now time.Time) TimerSnapshot {
	return TimerSnapshot{
		SessionType:     t,
		PlannedDuration: t.DefaultDuration(),
		LastActiveTime:  now,
	}
}

// CompletedSession captures a finished (or abandoned) session for history.
type CompletedSession struct {
	ServerID        string
	LocalID         string
	SessionType     SessionType
	CategoryID      string
	TaskID          string
	StartedAt       time.Time
	EndedAt         time.Time
	PlannedDuration int
	WorkedSeconds   int
	Completed       bool
	QualityRating   *int
	Notes           string
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	Since         *time.Time
	CompletedOnly bool
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	SessionID     int64
	SessionType   SessionType
	EndedAt       time.Time
	WorkedSeconds int
	Completed     bool
	QualityRating *int
}
