package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	assert.True(t, FeatureStatusApproved.Valid())
	assert.False(t, FeatureStatus("open").Valid())

	assert.True(t, PriorityCritical.Valid())
	assert.False(t, Priority("urgent").Valid())
	assert.False(t, Priority("").Valid())

	assert.True(t, ComplexityComplex.Valid())
	assert.False(t, Complexity("huge").Valid())

	assert.True(t, RoleLead.Valid())
	assert.False(t, Role("manager").Valid())
}
