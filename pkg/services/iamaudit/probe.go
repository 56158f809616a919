// Package iamaudit probes IAM for account hygiene: password policy presence,
// users without MFA and access keys unused for more than 90 days.
//
// The enumeration is all-or-nothing: a partial report (e.g. an empty noMFA
// list because pagination stopped early) would read as a clean bill of
// health, so any remote failure aborts the whole probe.
package iamaudit

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/johnnycloud/posture/pkg/models/api"
	"github.com/johnnycloud/posture/pkg/services/awsx"
)

const staleKeyAge = 90 * 24 * time.Hour

type IAMAPI interface {
	GetAccountPasswordPolicy(
		ctx context.Context,
		params *iam.GetAccountPasswordPolicyInput,
		optFns ...func(*iam.Options),
	) (*iam.GetAccountPasswordPolicyOutput, error)
	ListUsers(
		ctx context.Context,
		params *iam.ListUsersInput,
		optFns ...func(*iam.Options),
	) (*iam.ListUsersOutput, error)
	ListMFADevices(
		ctx context.Context,
		params *iam.ListMFADevicesInput,
		optFns ...func(*iam.Options),
	) (*iam.ListMFADevicesOutput, error)
	ListAccessKeys(
		ctx context.Context,
		params *iam.ListAccessKeysInput,
		optFns ...func(*iam.Options),
	) (*iam.ListAccessKeysOutput, error)
	GetAccessKeyLastUsed(
		ctx context.Context,
		params *iam.GetAccessKeyLastUsedInput,
		optFns ...func(*iam.Options),
	) (*iam.GetAccessKeyLastUsedOutput, error)
}

type Probe struct {
	client  IAMAPI
	timeout time.Duration
	now     func() time.Time
}

func NewProbe(client IAMAPI, timeout time.Duration) *Probe {
	return &Probe{
		client:  client,
		timeout: timeout,
		now:     time.Now,
	}
}

// Hygiene assembles the identity hygiene report.
func (p *Probe) Hygiene(ctx context.Context) any {
	report := api.IdentityHygiene{
		PasswordPolicy: p.passwordPolicy(ctx),
		NoMFA:          []string{},
		OldKeys:        []api.OldKey{},
	}

	users, err := p.listUsers(ctx)
	if err != nil {
		return api.Error{Error: "iam", Detail: err.Error()}
	}

	now := p.now()
	for _, user := range users {
		name := aws.ToString(user.UserName)

		mfa, err := call(ctx, p.timeout, func(ctx context.Context) (*iam.ListMFADevicesOutput, error) {
			return p.client.ListMFADevices(ctx, &iam.ListMFADevicesInput{UserName: user.UserName})
		})
		if err != nil {
			return api.Error{Error: "iam", Detail: err.Error()}
		}
		if len(mfa.MFADevices) == 0 {
			report.NoMFA = append(report.NoMFA, name)
		}

		keys, err := call(ctx, p.timeout, func(ctx context.Context) (*iam.ListAccessKeysOutput, error) {
			return p.client.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: user.UserName})
		})
		if err != nil {
			return api.Error{Error: "iam", Detail: err.Error()}
		}
		for _, key := range keys.AccessKeyMetadata {
			lastUsed, err := call(ctx, p.timeout, func(ctx context.Context) (*iam.GetAccessKeyLastUsedOutput, error) {
				return p.client.GetAccessKeyLastUsed(ctx, &iam.GetAccessKeyLastUsedInput{
					AccessKeyId: key.AccessKeyId,
				})
			})
			if err != nil {
				return api.Error{Error: "iam", Detail: err.Error()}
			}
			if lastUsed.AccessKeyLastUsed != nil && keyIsOld(now, lastUsed.AccessKeyLastUsed.LastUsedDate) {
				report.OldKeys = append(report.OldKeys, api.OldKey{
					User: name,
					Key:  aws.ToString(key.AccessKeyId),
				})
			}
		}
	}

	return report
}

// passwordPolicy reports "missing" only for the specific not-found condition;
// every other outcome, including unrelated failures, counts as "present".
func (p *Probe) passwordPolicy(ctx context.Context) string {
	_, err := call(ctx, p.timeout, func(ctx context.Context) (*iam.GetAccountPasswordPolicyOutput, error) {
		return p.client.GetAccountPasswordPolicy(ctx, &iam.GetAccountPasswordPolicyInput{})
	})
	if err != nil && awsx.ErrorCode(err) == "NoSuchEntity" {
		return "missing"
	}
	return "present"
}

func (p *Probe) listUsers(ctx context.Context) ([]iamtypes.User, error) {
	var users []iamtypes.User
	var marker *string
	for {
		out, err := call(ctx, p.timeout, func(ctx context.Context) (*iam.ListUsersOutput, error) {
			return p.client.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		})
		if err != nil {
			return nil, err
		}
		users = append(users, out.Users...)
		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}
	return users, nil
}

// call runs one remote call under the probe's per-call timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// keyIsOld reports whether a key's last use is more than 90 days before now.
// A key with no last-used record is never old.
func keyIsOld(now time.Time, lastUsed *time.Time) bool {
	if lastUsed == nil {
		return false
	}
	return now.Sub(*lastUsed) > staleKeyAge
}
