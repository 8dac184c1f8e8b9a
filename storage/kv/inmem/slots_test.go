package inmemkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eduspace/core/session"
)

func TestSlots(t *testing.T) {
	ctx := context.Background()
	slots := New(time.Hour)

	_, err := slots.Get(ctx, "c1", session.SlotUID)
	assert.Equal(t, session.ErrSlotEmpty, err)

	require.NoError(t, slots.Set(ctx, "c1", session.SlotUID, "u1"))
	require.NoError(t, slots.Set(ctx, "c2", session.SlotUID, "u2"))

	val, err := slots.Get(ctx, "c1", session.SlotUID)
	require.NoError(t, err)
	assert.Equal(t, "u1", val)

	require.NoError(t, slots.Delete(ctx, "c1", session.SlotUID, session.SlotUser))
	_, err = slots.Get(ctx, "c1", session.SlotUID)
	assert.Equal(t, session.ErrSlotEmpty, err)

	val, err = slots.Get(ctx, "c2", session.SlotUID)
	require.NoError(t, err)
	assert.Equal(t, "u2", val, "other contexts are untouched")
}

func TestSlots_Expiry(t *testing.T) {
	ctx := context.Background()
	slots := New(time.Minute)
	require.NoError(t, slots.Set(ctx, "c1", session.SlotUID, "u1"))

	NowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { NowFunc = time.Now }()

	_, err := slots.Get(ctx, "c1", session.SlotUID)
	assert.Equal(t, session.ErrSlotEmpty, err)
}
