package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
	appsync "github.com/nhle/shuttledesk/internal/sync"
	"github.com/nhle/shuttledesk/tests/testutil"
)

func TestWatchWithoutCredentials(t *testing.T) {
	err := Watch(context.Background(), WatchOptions{
		Config:  testConfig(),
		Backend: &fakeBackend{},
		Store:   testutil.NewTestStore(t),
		Ring:    credential.Memory{},
	})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestWatchSignsInAndStops(t *testing.T) {
	backend := &fakeBackend{
		identity: testutil.Staff,
		list:     []model.Appointment{testutil.Appt(1, testutil.Patient.ID, model.StatusPending)},
	}
	st := testutil.NewTestStore(t)
	ring := credential.Memory{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, WatchOptions{
			Config:      testConfig(),
			Backend:     backend,
			Store:       st,
			Ring:        ring,
			Credentials: &source.Credentials{Email: "nok@hospital.example", Password: "pw"},
		})
	}()

	assert.Eventually(t, func() bool {
		snap, err := st.LoadSnapshot(context.Background(), testutil.Staff)
		return err == nil && len(snap) == 1
	}, 2*time.Second, 10*time.Millisecond, "first cycle stores the baseline")
	assert.Contains(t, ring, credential.KeySession, "watch remembers the session it signed in")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestStatusRouter(t *testing.T) {
	core := NewCore(CoreOptions{
		Config:  testConfig(),
		Backend: &fakeBackend{identity: testutil.Admin},
		Store:   testutil.NewTestStore(t),
	})
	t.Cleanup(core.End)

	reg := prometheus.NewRegistry()
	_ = appsync.NewPollMetrics(reg)
	srv := httptest.NewServer(NewStatusRouter(core, reg))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, core.Begin(context.Background(), testutil.Admin))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, testutil.Admin.ID, body.Identity)
	assert.Equal(t, string(model.RoleAdmin), body.Role)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
