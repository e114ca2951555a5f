package runtime

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(h message.HandlerFunc, mws []message.HandlerMiddleware) message.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestBusMiddlewares_RecoversPanics(t *testing.T) {
	h := chain(func(*message.Message) ([]*message.Message, error) {
		panic("forwarder exploded")
	}, busMiddlewares(testLogger()))

	var err error
	require.NotPanics(t, func() {
		_, err = h(message.NewMessage("1", []byte("{}")))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forwarder exploded")
}

func TestBusMiddlewares_PassesThrough(t *testing.T) {
	var seen string
	h := chain(func(msg *message.Message) ([]*message.Message, error) {
		seen = msg.UUID
		return nil, nil
	}, busMiddlewares(testLogger()))

	produced, err := h(message.NewMessage("abc", []byte("{}")))
	require.NoError(t, err)
	assert.Nil(t, produced)
	assert.Equal(t, "abc", seen)
}
