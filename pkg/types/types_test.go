package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseStatusValid(t *testing.T) {
	for _, s := range []CaseStatus{CaseStatusOpen, CaseStatusInReview, CaseStatusResolved, CaseStatusClosed} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []CaseStatus{"", "OPEN", "pending", "in-review"} {
		assert.False(t, s.Valid(), s)
	}
}
