package service

import (
	"fmt"
	"strings"

	"github.com/comanda-pos/floor/internal/enum"
)

// TransitionPolicy decides which kitchen status changes an order may take.
type TransitionPolicy string

const (
	// PolicyLenient allows any change, including backwards corrections.
	PolicyLenient TransitionPolicy = "lenient"
	// PolicyForward allows skipping ahead but never going back.
	PolicyForward TransitionPolicy = "forward"
	// PolicyStrict allows exactly one step forward at a time.
	PolicyStrict TransitionPolicy = "strict"
)

var orderStatusRank = map[string]int{
	enum.OrderStatusPending:   0,
	enum.OrderStatusPreparing: 1,
	enum.OrderStatusReady:     2,
	enum.OrderStatusDelivered: 3,
}

// ParseTransitionPolicy reads ORDER_STATUS_POLICY. Empty means forward.
func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch p := TransitionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyForward, nil
	case PolicyLenient, PolicyForward, PolicyStrict:
		return p, nil
	}
	return "", fmt.Errorf("unknown order status policy %q", s)
}

// Allows reports whether an order may move from one status to another.
// Setting the current status again is always a no-op and allowed.
func (p TransitionPolicy) Allows(from, to string) bool {
	fromRank, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[to]
	if !ok {
		return false
	}
	if fromRank == toRank {
		return true
	}
	switch p {
	case PolicyForward:
		return toRank > fromRank
	case PolicyStrict:
		return toRank == fromRank+1
	default:
		return true
	}
}
