package enums

import (
	"fmt"
	"strings"
)

// CancellationDecision is the review state of a cancellation request.
type CancellationDecision string

const (
	CancellationPending  CancellationDecision = "PENDING"
	CancellationApproved CancellationDecision = "APPROVED"
	CancellationRejected CancellationDecision = "REJECTED"
)

func (d CancellationDecision) String() string {
	return string(d)
}

func (d CancellationDecision) IsTerminal() bool {
	return d == CancellationApproved || d == CancellationRejected
}

// ParseReviewDecision accepts only the two outcomes a reviewer can choose.
func ParseReviewDecision(value string) (CancellationDecision, error) {
	switch CancellationDecision(strings.ToUpper(strings.TrimSpace(value))) {
	case CancellationApproved:
		return CancellationApproved, nil
	case CancellationRejected:
		return CancellationRejected, nil
	}
	return "", fmt.Errorf("invalid review decision %q", value)
}
