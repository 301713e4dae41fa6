package mqttv3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableInsertTake(t *testing.T) {
	table := newPendingTable()

	fired := false
	require.NoError(t, table.insert(1, completionSubscribe, func(ok bool) { fired = ok }))
	assert.True(t, table.has(1))
	assert.Equal(t, 1, table.size())

	entry, ok := table.take(1, completionSubscribe)
	require.True(t, ok)
	assert.Equal(t, completionSubscribe, entry.kind)
	assert.False(t, table.has(1))

	entry.done(true)
	assert.True(t, fired)

	// A second take finds nothing: completions are one-shot.
	_, ok = table.take(1, completionSubscribe)
	assert.False(t, ok)
}

func TestPendingTableDuplicateIdentifier(t *testing.T) {
	table := newPendingTable()

	require.NoError(t, table.insert(7, completionPublish1, nil))
	assert.ErrorIs(t, table.insert(7, completionSubscribe, nil), ErrDuplicatePacketID)
}

func TestPendingTableKindMismatch(t *testing.T) {
	table := newPendingTable()

	require.NoError(t, table.insert(3, completionUnsubscribe, nil))

	// A PUBACK-style take must not consume a pending unsubscribe.
	_, ok := table.take(3, completionPublish1)
	assert.False(t, ok)
	assert.True(t, table.has(3))

	_, ok = table.take(3, completionUnsubscribe)
	assert.True(t, ok)
}

func TestPendingTableDrain(t *testing.T) {
	table := newPendingTable()

	require.NoError(t, table.insert(1, completionSubscribe, nil))
	require.NoError(t, table.insert(2, completionPublish1, nil))
	require.NoError(t, table.insert(3, completionUnsubscribe, nil))

	drained := table.drain()
	assert.Len(t, drained, 3)
	assert.Zero(t, table.size())

	assert.Empty(t, table.drain())
}

func TestCompletionKindString(t *testing.T) {
	assert.Equal(t, "subscribe", completionSubscribe.String())
	assert.Equal(t, "unsubscribe", completionUnsubscribe.String())
	assert.Equal(t, "publish qos1", completionPublish1.String())
}
