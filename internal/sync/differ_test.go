package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/tests/testutil"
)

var diffNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestDiffFirstLoadIsSilent(t *testing.T) {
	next := model.Snapshot{
		testutil.Appt(1, 7, model.StatusPending),
		testutil.Appt(2, 7, model.StatusApproved),
	}
	assert.Empty(t, Diff(nil, next, diffNow))
	assert.Empty(t, Diff(model.Snapshot{}, next, diffNow))
}

func TestDiffNewAndChanged(t *testing.T) {
	prev := model.Snapshot{
		testutil.Appt(1, 7, model.StatusPending),
		testutil.Appt(2, 7, model.StatusPending),
		testutil.Appt(3, 7, model.StatusPending),
	}
	next := model.Snapshot{
		testutil.Appt(4, 7, model.StatusPending),
		testutil.Appt(2, 7, model.StatusApproved),
		testutil.Appt(1, 7, model.StatusPending),
		testutil.Appt(5, 8, model.StatusRejected),
	}

	events := Diff(prev, next, diffNow)
	require.Len(t, events, 3)

	// Order follows next.
	assert.Equal(t, 4, events[0].AppointmentID())
	assert.Equal(t, model.NewAppointment{
		AppointmentRef: model.RefOf(next[0]),
		Status:         model.StatusPending,
	}, events[0].Change)

	assert.Equal(t, model.StatusChange{
		AppointmentRef: model.RefOf(next[1]),
		OldStatus:      model.StatusPending,
		NewStatus:      model.StatusApproved,
	}, events[1].Change)

	assert.Equal(t, 5, events[2].AppointmentID())
	assert.Equal(t, model.EventNewAppointment, events[2].Kind())

	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Read)
		at, ok := e.OccurredAt()
		require.True(t, ok)
		assert.True(t, at.Equal(diffNow))
	}
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestDiffRemovedProducesNothing(t *testing.T) {
	prev := model.Snapshot{
		testutil.Appt(1, 7, model.StatusPending),
		testutil.Appt(2, 7, model.StatusPending),
	}
	next := model.Snapshot{testutil.Appt(2, 7, model.StatusPending)}

	assert.Empty(t, Diff(prev, next, diffNow))
	assert.Empty(t, Diff(prev, model.Snapshot{}, diffNow))
}

func TestDiffOnlyStatusMatters(t *testing.T) {
	old := testutil.Appt(1, 7, model.StatusPending)
	edited := old
	edited.Hospital = "Ramathibodi"
	edited.AppointmentTime = "14:00"

	assert.Empty(t, Diff(model.Snapshot{old}, model.Snapshot{edited}, diffNow))
}

func TestDiffUnknownStatusTokensCompareVerbatim(t *testing.T) {
	prev := model.Snapshot{testutil.Appt(1, 7, "on hold")}
	next := model.Snapshot{testutil.Appt(1, 7, "On Hold")}

	events := Diff(prev, next, diffNow)
	require.Len(t, events, 1)
	assert.Equal(t, "on hold", events[0].Change.(model.StatusChange).OldStatus)
}

func TestKindFilter(t *testing.T) {
	events := []model.ChangeEvent{
		model.NewEvent(model.NewAppointment{}, diffNow),
		model.NewEvent(model.StatusChange{}, diffNow),
	}

	assert.Len(t, KindFilter(nil).Apply(events), 2)
	assert.Len(t, NewKindFilter(nil).Apply(events), 2)

	onlyNew := NewKindFilter([]string{"new_appointment"})
	got := onlyNew.Apply(events)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventNewAppointment, got[0].Kind())
	assert.Len(t, events, 2, "Apply must not modify its input")

	assert.True(t, onlyNew.Allows(model.EventNewAppointment))
	assert.False(t, onlyNew.Allows(model.EventStatusChange))
}
