package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned when a contract has used up its model calls.
var ErrBudgetExceeded = errors.New("call budget exceeded")

// CallBudget caps model calls per contract id within a rolling time window.
type CallBudget struct {
	mu     sync.Mutex
	counts map[string]*windowCounter

	maxPerWindow int
	windowSize   time.Duration
	now          func() time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewCallBudget creates a budget of maxPerWindow calls per contract within
// windowSize. A maxPerWindow of zero or less disables the budget.
func NewCallBudget(maxPerWindow int, windowSize time.Duration) *CallBudget {
	return &CallBudget{
		counts:       make(map[string]*windowCounter),
		maxPerWindow: maxPerWindow,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

// Take reserves one call for the contract. It fails without consuming
// anything once the window's allowance is spent. A nil receiver always allows.
func (b *CallBudget) Take(contractID string) error {
	if b == nil || b.maxPerWindow <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	wc, ok := b.counts[contractID]
	if !ok || now.After(wc.windowEnd) {
		b.counts[contractID] = &windowCounter{count: 1, windowEnd: now.Add(b.windowSize)}
		return nil
	}
	if wc.count >= b.maxPerWindow {
		return fmt.Errorf("%w: contract %s (%d/%d in window)", ErrBudgetExceeded, contractID, wc.count, b.maxPerWindow)
	}
	wc.count++
	return nil
}

// Used returns the calls recorded for the contract in the current window.
func (b *CallBudget) Used(contractID string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	wc, ok := b.counts[contractID]
	if !ok || b.now().After(wc.windowEnd) {
		return 0
	}
	return wc.count
}
