package dispatch

import (
	"strings"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// carrierStatusMap translates the carrier's status vocabulary onto the
// message state machine. Unrecognized values map to sent so an unknown
// callback is never silently dropped.
var carrierStatusMap = map[string]store.MessageStatus{
	"queued":      store.StatusSent,
	"sending":     store.StatusSent,
	"sent":        store.StatusSent,
	"delivered":   store.StatusDelivered,
	"received":    store.StatusDelivered,
	"read":        store.StatusRead,
	"failed":      store.StatusFailed,
	"undelivered": store.StatusFailed,
}

// MapCarrierStatus resolves one carrier status value.
func MapCarrierStatus(s string) store.MessageStatus {
	if st, ok := carrierStatusMap[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return store.StatusSent
}

// statusRank orders the forward progression of the state machine.
var statusRank = map[store.MessageStatus]int{
	store.StatusDraft:     0,
	store.StatusScheduled: 1,
	store.StatusSent:      2,
	store.StatusDelivered: 3,
	store.StatusRead:      4,
}

// isTerminal reports whether no further callback may move the status.
func isTerminal(s store.MessageStatus) bool {
	return s == store.StatusRead || s == store.StatusFailed
}

// canTransition guards callback-driven transitions: forward-only through
// sent → delivered → read, failed reachable from any non-terminal state.
// Replayed or out-of-order callbacks (delivered after read, sent after
// delivered) are no-ops rather than regressions.
func canTransition(from, to store.MessageStatus) bool {
	if from == to {
		return false
	}
	if to == store.StatusFailed {
		return !isTerminal(from)
	}
	if isTerminal(from) {
		return false
	}
	return statusRank[to] > statusRank[from]
}
