package app

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/store"
	"github.com/nhle/shuttledesk/tests/testutil"
)

// heldBackend holds the first fetch until release is closed.
type heldBackend struct {
	*fakeBackend
	once     gosync.Once
	entered  chan struct{}
	release  chan struct{}
	returned chan struct{}
}

func (h *heldBackend) FetchAppointments(ctx context.Context, opts source.FetchOptions) (*source.FetchResult, error) {
	first := false
	h.once.Do(func() { first = true })
	if !first {
		return h.fakeBackend.FetchAppointments(ctx, opts)
	}
	defer close(h.returned)
	close(h.entered)
	<-h.release
	return h.fakeBackend.FetchAppointments(ctx, opts)
}

// hookedStore runs onLoad once when the baseline of id is loaded.
type hookedStore struct {
	store.FeedStore
	id     model.Identity
	once   gosync.Once
	onLoad func()
}

func (h *hookedStore) LoadSnapshot(ctx context.Context, id model.Identity) (model.Snapshot, error) {
	if id.ID == h.id.ID {
		h.once.Do(h.onLoad)
	}
	return h.FeedStore.LoadSnapshot(ctx, id)
}

func TestBeginStopsPreviousSessionBeforeSwitchingFeed(t *testing.T) {
	ctx := context.Background()
	backing := testutil.NewTestStore(t)

	// Staff already knows appointment 1, so the held cycle sees 2 as new.
	baseline, _ := model.NewSnapshot([]model.Appointment{testutil.Appt(1, 99, model.StatusPending)})
	entry, err := store.SnapshotEntry(testutil.Staff, baseline)
	require.NoError(t, err)
	require.NoError(t, backing.Commit(ctx, entry))

	backend := &heldBackend{
		fakeBackend: &fakeBackend{list: []model.Appointment{
			testutil.Appt(1, 99, model.StatusPending),
			testutil.Appt(2, 99, model.StatusPending),
		}},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		returned: make(chan struct{}),
	}

	// The staff fetch completes while the patient session is starting,
	// after the patient feed is already open.
	st := &hookedStore{FeedStore: backing, id: testutil.Patient, onLoad: func() {
		close(backend.release)
		<-backend.returned
	}}

	core := NewCore(CoreOptions{Config: testConfig(), Backend: backend, Store: st})
	t.Cleanup(core.End)

	require.NoError(t, core.Begin(ctx, testutil.Staff))
	<-backend.entered

	require.NoError(t, core.Begin(ctx, testutil.Patient))
	assert.True(t, core.Poller.Running())
	require.NotNil(t, core.Identity())
	assert.Equal(t, testutil.Patient.ID, core.Identity().ID)

	assert.Never(t, func() bool {
		return len(core.Notifier.State().Events) > 0
	}, 200*time.Millisecond, 10*time.Millisecond, "staff events leaked into the patient feed")

	stored, err := backing.LoadFeed(ctx, testutil.Patient)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
