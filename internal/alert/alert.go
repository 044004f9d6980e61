// Package alert turns change events into role-specific alerts and
// delivers them to one or more channels.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/shuttledesk/internal/model"
)

// Action is the choice offered by every alert.
type Action int

const (
	ActionDismiss Action = iota
	ActionNavigate
)

// Alert is a rendered, role-specific notification for one event.
type Alert struct {
	// Event is the source event.
	Event model.ChangeEvent

	// Recipient is the identity the alert is addressed to.
	Recipient model.Identity

	Title string

	// Lines are "Label: value" rows, in display order.
	Lines []Line

	// NavigateLabel names the navigate action; Route is where it goes.
	NavigateLabel string
	Route         string

	DismissLabel string
}

// Line is one labelled row of an alert body.
type Line struct {
	Label string
	Value string
}

// Text renders the alert as plain text, one line per row.
func (a Alert) Text() string {
	var b strings.Builder
	b.WriteString(a.Title)
	b.WriteString("\n")
	for _, l := range a.Lines {
		fmt.Fprintf(&b, "%s: %s\n", l.Label, l.Value)
	}
	return b.String()
}

// Dispatcher delivers alerts. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, a Alert) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, a Alert) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// Multi fans an alert out to every dispatcher, in order. All are tried;
// the errors are joined.
type Multi []Dispatcher

// Dispatch delivers a to each dispatcher.
func (m Multi) Dispatch(ctx context.Context, a Alert) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every alert.
var Discard Dispatcher = DispatcherFunc(func(context.Context, Alert) error { return nil })
