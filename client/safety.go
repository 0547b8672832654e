package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// ErrSafetyTriggered is wrapped by every call refused after the kill switch fired.
var ErrSafetyTriggered = errors.New("safety switch active")

// SafetyManager stops further calls once the upstream signals a ban.
// A manager made by ForUser counts errors on its own and forwards only
// ban signals (403, 429) to its parent, which every user shares.
type SafetyManager struct {
	mu            sync.RWMutex
	Triggered     bool
	TriggerReason string
	TriggeredAt   time.Time

	// Thresholds
	MaxConsecutiveErrors int
	ErrorCount           int

	parent *SafetyManager
}

// NewSafetyManager creates a new SafetyManager.
func NewSafetyManager() *SafetyManager {
	return &SafetyManager{
		MaxConsecutiveErrors: 5,
	}
}

// ForUser returns a manager for one user's calls. Its consecutive error
// limit is at least minErrors.
func (sm *SafetyManager) ForUser(minErrors int) *SafetyManager {
	limit := sm.MaxConsecutiveErrors
	if minErrors > limit {
		limit = minErrors
	}
	return &SafetyManager{MaxConsecutiveErrors: limit, parent: sm}
}

// CheckResponse inspects an HTTP status for ban signals (403, 429).
// Returns true if safe to proceed, false if safety trigger pulled.
func (sm *SafetyManager) CheckResponse(statusCode int) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.Triggered {
		return false
	}

	if statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests {
		reason := fmt.Sprintf("HTTP %d Detected", statusCode)
		sm.triggerLocked(reason)
		if sm.parent != nil {
			sm.parent.ban(reason)
		}
		return false
	}

	if statusCode >= 500 {
		sm.ErrorCount++
		if sm.ErrorCount >= sm.MaxConsecutiveErrors {
			sm.triggerLocked("Too many consecutive 5xx errors")
			return false
		}
	} else if statusCode >= 200 && statusCode < 300 {
		sm.ErrorCount = 0
	}

	return true
}

// CheckError counts a transport failure towards the consecutive error limit.
// Cancellation by the caller is not an upstream failure and is not counted.
func (sm *SafetyManager) CheckError(err error) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.Triggered {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	sm.ErrorCount++
	if sm.ErrorCount >= sm.MaxConsecutiveErrors {
		sm.triggerLocked(fmt.Sprintf("Too many consecutive errors, last: %v", err))
		return false
	}
	return true
}

func (sm *SafetyManager) ban(reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.triggerLocked(reason)
}

func (sm *SafetyManager) triggerLocked(reason string) {
	if !sm.Triggered {
		sm.Triggered = true
		sm.TriggerReason = reason
		sm.TriggeredAt = time.Now()
		log.Printf("🚨 SAFETY TRIGGER ACTIVATED: %s", reason)
	}
}

func (sm *SafetyManager) IsTriggered() bool {
	sm.mu.RLock()
	triggered := sm.Triggered
	sm.mu.RUnlock()
	if !triggered && sm.parent != nil {
		return sm.parent.IsTriggered()
	}
	return triggered
}

// Reason returns why the switch fired, or "" if it has not.
func (sm *SafetyManager) Reason() string {
	sm.mu.RLock()
	reason := sm.TriggerReason
	sm.mu.RUnlock()
	if reason == "" && sm.parent != nil {
		return sm.parent.Reason()
	}
	return reason
}
