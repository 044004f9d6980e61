package alert_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	gosync "sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/tests/testutil"
)

type sentMail struct {
	from string
	to   []string
	msg  []byte
}

type fakeSender struct {
	mu   gosync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, msg: msg})
	return nil
}

var emailCfg = model.EmailConfig{
	Enabled:  true,
	SMTPHost: "smtp.example.com",
	SMTPPort: 587,
	Username: "alerts@example.com",
	To:       "desk@example.com, night@example.com",
}

func TestBuildMessage(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Staff, statusChange(4, model.StatusPending, model.StatusApproved))

	raw, err := alert.BuildMessage("alerts@example.com", []string{"desk@example.com"}, a, detected)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[shuttledesk] Booking status changed", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "desk@example.com", to[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(detected))

	p, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Status: has been approved")
	assert.Contains(t, string(body), "View bookings: /staff/bookings")
}

func TestBuildMessageThaiContent(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Admin, statusChange(4, model.StatusPending, "รอยืนยัน"))

	raw, err := alert.BuildMessage("alerts@example.com", []string{"desk@example.com"}, a, detected)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	p, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "รอยืนยัน")
}

func TestEmailDispatcherSendsToAllRecipients(t *testing.T) {
	sender := &fakeSender{}
	d := alert.NewEmailDispatcher(emailCfg, sender)

	a := alert.Composer{}.Compose(testutil.Admin, newBooking(3))
	require.NoError(t, d.Dispatch(context.Background(), a))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alerts@example.com", sender.sent[0].from)
	assert.Equal(t, []string{"desk@example.com", "night@example.com"}, sender.sent[0].to)
}

func TestEmailDispatcherNoRecipients(t *testing.T) {
	sender := &fakeSender{}
	cfg := emailCfg
	cfg.To = " , "
	d := alert.NewEmailDispatcher(cfg, sender)

	require.NoError(t, d.Dispatch(context.Background(), alert.Alert{}))
	assert.Empty(t, sender.sent)
}

func TestEmailDispatcherDedupesAcrossDispatchers(t *testing.T) {
	st := testutil.NewTestStore(t)
	sender := &fakeSender{}
	first := alert.NewEmailDispatcher(emailCfg, sender, alert.WithDispatchLog(st, time.Hour))
	second := alert.NewEmailDispatcher(emailCfg, sender, alert.WithDispatchLog(st, time.Hour))

	// Two processes detecting the same change produce distinct event ids
	// with identical content.
	c := alert.Composer{}
	require.NoError(t, first.Dispatch(context.Background(), c.Compose(testutil.Admin, newBooking(3))))
	require.NoError(t, second.Dispatch(context.Background(), c.Compose(testutil.Admin, newBooking(3))))
	assert.Len(t, sender.sent, 1)

	require.NoError(t, second.Dispatch(context.Background(), c.Compose(testutil.Admin, newBooking(4))))
	assert.Len(t, sender.sent, 2)
}

func TestEmailDispatcherSendError(t *testing.T) {
	boom := errors.New("connection refused")
	d := alert.NewEmailDispatcher(emailCfg, &fakeSender{err: boom})

	err := d.Dispatch(context.Background(), alert.Composer{}.Compose(testutil.Admin, newBooking(3)))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestContentHash(t *testing.T) {
	c := alert.Composer{}
	same1 := c.Compose(testutil.Admin, statusChange(4, model.StatusPending, model.StatusApproved))
	same2 := c.Compose(testutil.Admin, statusChange(4, model.StatusPending, model.StatusApproved))
	other := c.Compose(testutil.Admin, statusChange(4, model.StatusApproved, model.StatusCancelled))
	staff := c.Compose(testutil.Staff, statusChange(4, model.StatusPending, model.StatusApproved))

	assert.NotEqual(t, same1.Event.ID, same2.Event.ID)
	assert.Equal(t, alert.ContentHash(same1), alert.ContentHash(same2))
	assert.NotEqual(t, alert.ContentHash(same1), alert.ContentHash(other))
	assert.NotEqual(t, alert.ContentHash(same1), alert.ContentHash(staff))
}
