package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gantryio/gantry/internal/core/domain"
)

func TestSessionDecoratorEnablesDebug(t *testing.T) {
	d := NewSessionDecorator(true)
	ctx := d.Decorate(domain.NewSessionContext())
	assert.True(t, ctx.DebugRequest())
}

func TestSessionDecoratorLeavesDebugOff(t *testing.T) {
	d := NewSessionDecorator(false)
	ctx := d.Decorate(domain.NewSessionContext())
	assert.False(t, ctx.DebugRequest())
}
