// Package account stores the delegated cloud accounts customers have linked and
// records when a tagging pass over one of them has finished.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yairfalse/autotag/internal/telemetry"
)

// ErrNotFound is returned when a principal or binding does not exist.
var ErrNotFound = errors.New("not found")

// Binding identifies a customer's delegated cloud account.
type Binding struct {
	OwnerID           string `json:"userId" yaml:"userId"`
	AccountID         string `json:"accountId" yaml:"accountId"`
	RoleARN           string `json:"roleArn" yaml:"roleArn"`
	ExternalID        string `json:"externalId" yaml:"externalId"`
	IsResourcesTagged bool   `json:"isResourcesTagged" yaml:"isResourcesTagged"`
}

// Validate checks the fields every stored binding must carry.
func (b Binding) Validate() error {
	var missing []string
	if b.OwnerID == "" {
		missing = append(missing, "ownerId")
	}
	if b.AccountID == "" {
		missing = append(missing, "accountId")
	}
	if b.RoleARN == "" {
		missing = append(missing, "roleArn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("binding missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Store is the account-record collaborator.
type Store interface {
	// OwnerOf maps a verified principal to the owner id its bindings live under.
	OwnerOf(ctx context.Context, principal string) (string, error)
	Binding(ctx context.Context, ownerID, accountID string) (*Binding, error)
	PutOwner(ctx context.Context, principal, ownerID string) error
	PutBinding(ctx context.Context, b Binding) error
	// SetTagged updates isResourcesTagged on an existing binding only.
	SetTagged(ctx context.Context, ownerID, accountID string, tagged bool) error
	Close() error
}

// Resolve looks up the binding for accountID on behalf of principal.
func Resolve(ctx context.Context, store Store, principal, accountID string) (*Binding, error) {
	ownerID, err := store.OwnerOf(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	b, err := store.Binding(ctx, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup binding %s: %w", accountID, err)
	}
	return b, nil
}

// PersistenceError reports that the completion flag was not written.
type PersistenceError struct {
	OwnerID   string
	AccountID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record completion for %s/%s: %v", e.OwnerID, e.AccountID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Recorder persists the tagging-completed flag.
type Recorder struct {
	store  Store
	logger *telemetry.Logger
}

// NewRecorder creates a recorder over store.
func NewRecorder(store Store, logger *telemetry.Logger) *Recorder {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Recorder{store: store, logger: logger}
}

// MarkTagged sets isResourcesTagged on b. A failure is a *PersistenceError.
func (r *Recorder) MarkTagged(ctx context.Context, b Binding) error {
	if err := r.store.SetTagged(ctx, b.OwnerID, b.AccountID, true); err != nil {
		r.logger.WithContext(ctx).Error().
			Err(err).
			Str("account_id", b.AccountID).
			Msg("failed to record tagging completion")
		return &PersistenceError{OwnerID: b.OwnerID, AccountID: b.AccountID, Err: err}
	}

	r.logger.WithContext(ctx).Info().
		Str("account_id", b.AccountID).
		Msg("recorded tagging completion")
	return nil
}
