// Package notify delivers best-effort messages to wallet holders after a
// money movement commits. Delivery failures never affect the ledger.
package notify

import (
	"context"
	"errors"
)

var (
	ErrCircuitOpen = errors.New("notifier circuit open")
	ErrTimeout     = errors.New("notifier timed out")
)

type Notifier interface {
	Notify(ctx context.Context, accountID, message string) error
}

type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }
