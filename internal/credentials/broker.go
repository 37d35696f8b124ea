// Package credentials exchanges a stored trust-role reference for short-lived scoped credentials.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/yairfalse/autotag/internal/telemetry"
)

// DefaultDuration is the validity window requested when none is configured.
const DefaultDuration = time.Hour

// STSAPI defines the STS operations used by the broker.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Credentials are scoped, time-boxed credentials for one delegated account.
// They belong to a single discovery or tagging call and are never persisted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAt       time.Time

	// AccountID is the account the assumed identity lives in, taken from STS.
	AccountID   string
	SessionName string
}

// Expired reports whether the credentials are past their window at now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Config returns an SDK config that signs with these credentials in region.
func (c Credentials) Config(region string) aws.Config {
	return aws.Config{
		Region: region,
		Credentials: awscreds.NewStaticCredentialsProvider(
			c.AccessKeyID,
			c.SecretAccessKey,
			c.SessionToken,
		),
		RetryMaxAttempts: 5,
	}
}

// String hides secret material.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{account=%s session=%s expires=%s}", c.AccountID, c.SessionName, c.ExpiresAt.Format(time.RFC3339))
}

// DelegationError reports that a trust role could not be assumed.
type DelegationError struct {
	RoleARN string
	Err     error
}

func (e *DelegationError) Error() string {
	return fmt.Sprintf("assume role %s: %v", e.RoleARN, e.Err)
}

func (e *DelegationError) Unwrap() error { return e.Err }

// Broker assumes customer trust roles.
type Broker struct {
	client   STSAPI
	duration time.Duration
	logger   *telemetry.Logger
}

// NewBroker creates a broker. A zero duration falls back to DefaultDuration.
func NewBroker(client STSAPI, duration time.Duration, logger *telemetry.Logger) *Broker {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Broker{client: client, duration: duration, logger: logger}
}

// Assume exchanges roleARN and externalID for scoped credentials. The account the
// role ARN names must match the account of the identity STS hands back.
func (b *Broker) Assume(ctx context.Context, roleARN, externalID string) (*Credentials, error) {
	roleAccount, err := AccountFromRoleARN(roleARN)
	if err != nil {
		return nil, &DelegationError{RoleARN: roleARN, Err: err}
	}

	sessionName := NewSessionName()
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(b.duration.Seconds())),
	}
	if externalID != "" {
		input.ExternalId = aws.String(externalID)
	}

	out, err := b.client.AssumeRole(ctx, input)
	if err != nil {
		return nil, &DelegationError{RoleARN: roleARN, Err: err}
	}
	if out.Credentials == nil {
		return nil, &DelegationError{RoleARN: roleARN, Err: errors.New("sts returned no credentials")}
	}

	accountID := roleAccount
	if out.AssumedRoleUser != nil && out.AssumedRoleUser.Arn != nil {
		assumed, err := arn.Parse(aws.ToString(out.AssumedRoleUser.Arn))
		if err != nil {
			return nil, &DelegationError{RoleARN: roleARN, Err: fmt.Errorf("parse assumed role arn: %w", err)}
		}
		if assumed.AccountID != roleAccount {
			return nil, &DelegationError{
				RoleARN: roleARN,
				Err:     fmt.Errorf("assumed identity is in account %s, role names account %s", assumed.AccountID, roleAccount),
			}
		}
		accountID = assumed.AccountID
	}

	creds := &Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		AccountID:       accountID,
		SessionName:     sessionName,
	}
	if out.Credentials.Expiration != nil {
		creds.ExpiresAt = *out.Credentials.Expiration
	}

	b.logger.WithContext(ctx).Debug().
		Str("role_arn", roleARN).
		Str("session_name", sessionName).
		Time("expires_at", creds.ExpiresAt).
		Msg("assumed role")

	return creds, nil
}

// NewSessionName returns a 32-character alphanumeric session name.
func NewSessionName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AccountFromRoleARN returns the account id embedded in an IAM role ARN.
func AccountFromRoleARN(roleARN string) (string, error) {
	parsed, err := arn.Parse(roleARN)
	if err != nil {
		return "", fmt.Errorf("parse role arn: %w", err)
	}
	if parsed.Service != "iam" || !strings.HasPrefix(parsed.Resource, "role/") {
		return "", fmt.Errorf("not an iam role arn: %s", roleARN)
	}
	if parsed.AccountID == "" {
		return "", fmt.Errorf("role arn has no account: %s", roleARN)
	}
	return parsed.AccountID, nil
}

// AssumeFor assumes roleARN and additionally requires the resulting identity to live in accountID.
func (b *Broker) AssumeFor(ctx context.Context, accountID, roleARN, externalID string) (*Credentials, error) {
	creds, err := b.Assume(ctx, roleARN, externalID)
	if err != nil {
		return nil, err
	}
	if creds.AccountID != accountID {
		return nil, &DelegationError{
			RoleARN: roleARN,
			Err:     fmt.Errorf("role belongs to account %s, binding is for %s", creds.AccountID, accountID),
		}
	}
	return creds, nil
}
