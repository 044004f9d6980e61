package shuttle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
)

// DefaultPageLimit is large enough that a single page holds every
// appointment of a clinic-sized deployment.
const DefaultPageLimit = 1000

// Adapter implements source.AppointmentSource and source.Authenticator
// for the booking API.
type Adapter struct {
	client    *Client
	pageLimit int
}

// NewAdapter creates a booking API adapter.
func NewAdapter(baseURL string, timeout time.Duration, pageLimit int) *Adapter {
	if pageLimit < 1 {
		pageLimit = DefaultPageLimit
	}
	return &Adapter{
		client:    NewClient(baseURL, timeout),
		pageLimit: pageLimit,
	}
}

// Client exposes the underlying HTTP client.
func (a *Adapter) Client() *Client {
	return a.client
}

// Login signs in with POST /login. A token in the response is kept for
// subsequent requests.
func (a *Adapter) Login(
	ctx context.Context,
	creds source.Credentials,
) (*model.Identity, error) {
	var resp LoginResponse
	err := a.client.Post(ctx, "/login", LoginRequest{
		Email:    creds.Email,
		Password: creds.Password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("signing in %s: %w", creds.Email, err)
	}
	if resp.User == nil {
		return nil, errors.New("signing in: response carried no user")
	}

	id := *resp.User
	if id.Token == "" {
		id.Token = resp.Token
	}
	if id.Email == "" {
		id.Email = creds.Email
	}
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	a.client.SetToken(id.Token)
	return &id, nil
}

// Resume reuses a remembered identity's token without signing in again.
func (a *Adapter) Resume(id model.Identity) {
	a.client.SetToken(id.Token)
}

// Logout forgets the bearer token.
func (a *Adapter) Logout() {
	a.client.SetToken("")
}

// FetchAppointments retrieves one page of GET /appointments.
func (a *Adapter) FetchAppointments(
	ctx context.Context,
	opts source.FetchOptions,
) (*source.FetchResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = a.pageLimit
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", opts.Status)
	q.Set("search", opts.Search)

	var resp AppointmentsResponse
	if err := a.client.Get(ctx, "/appointments", q, &resp); err != nil {
		return nil, fmt.Errorf("fetching appointments: %w", err)
	}

	appts := resp.Appointments
	if appts == nil {
		appts = []model.Appointment{}
	}

	return &source.FetchResult{
		Appointments: appts,
		Total:        resp.Total,
		TotalPages:   resp.TotalPages,
	}, nil
}
