package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// Partial runs end with a distinct exit code, set for main to act on after
// deferred cleanup has run. Failed runs surface as an error (exit 1).
func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, exitPartial, exitCodeFor(model.RunPartial))
	assert.Zero(t, exitCodeFor(model.RunSuccess))
	assert.Zero(t, exitCodeFor(model.RunFailed))
}
