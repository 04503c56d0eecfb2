package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalContext_CancelWithoutSignal(t *testing.T) {
	ctx := NewSignalContext(context.Background())
	ctx.Cancel()
	<-ctx.Done()
	assert.Nil(t, ctx.Signal())
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := NewSignalContext(parent)
	defer ctx.Cancel()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Nil(t, ctx.Signal())
}
