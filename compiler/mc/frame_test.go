package mc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrame_AllocateSlotAligns(t *testing.T) {
	f := NewFrame(16)

	i0 := f.AllocateSlot(4)
	i1 := f.AllocateSlot(8)

	assert.Equal(t, 0, i0)
	assert.Equal(t, 0, f.SpillSlots[i0].Offset)
	// the 8-byte slot must be aligned to its own size, not packed right
	// after the 4-byte slot.
	assert.Equal(t, 8, f.SpillSlots[i1].Offset)
}

func TestFrame_FinalizeRoundsUpToAlignment(t *testing.T) {
	f := NewFrame(16)
	f.AllocateSlot(4)

	f.Finalize()

	assert.Equal(t, 16, f.Size)
}

func TestFrame_ExceptionCallsiteRoundTrip(t *testing.T) {
	f := NewFrame(16)

	_, ok := f.LandingFor(3)
	assert.False(t, ok, "an instruction with no registered landing must report false")

	f.AddExceptionCallsite(3, "catch_block")
	landing, ok := f.LandingFor(3)
	assert.True(t, ok)
	assert.Equal(t, "catch_block", landing)

	_, ok = f.LandingFor(4)
	assert.False(t, ok, "an unrelated instruction index must not pick up another one's landing")
}

func TestFrame_ReserveCalleeSavedAligns(t *testing.T) {
	f := NewFrame(16)
	f.AllocateSlot(4)

	off := f.ReserveCalleeSaved(6, 8)

	assert.Equal(t, 16, off, "a callee-saved reservation must align to the frame's alignment, not the slot size")
}
