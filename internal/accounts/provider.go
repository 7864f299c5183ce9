// Package accounts implements a lazy sequence of sessions across the
// hosting account and configured remote accounts, with access-denied
// accounts deconfigured and skipped.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/avast/retry-go"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/deconfigure"
)

// STSAPI is the narrow seam onto the STS client, scoped to the single
// call this provider makes.
type STSAPI interface {
	AssumeRole(context.Context, *sts.AssumeRoleInput, ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Account is one yielded session: the hosting account (Role == "") or
// a remote account assumed via a cross-account role.
type Account struct {
	Name        string
	Role        string // empty for the hosting account
	Credentials aws.Credentials
}

// Config is the subset of SchedulerConfiguration the provider needs.
type Config struct {
	ScheduleLambdaAccount bool
	RemoteAccountIDs      []string
	AWSPartition          string
	Namespace             string
	SchedulerRoleName     string
}

// Provider yields one session per configured account. It is
// constructed once per cycle's invocation and caches assumed-role
// credentials for the lifetime of one STS lease (go-cache TTL
// slightly under the 1h max assume-role duration).
type Provider struct {
	sts          STSAPI
	service      string
	hostAccount  string
	hostCreds    aws.Credentials
	publisher    deconfigure.Publisher
	logger       *zap.Logger
	sessionCache *gocache.Cache
}

const sessionCacheTTL = 50 * time.Minute

func New(stsClient STSAPI, service, hostAccount string, hostCreds aws.Credentials, publisher deconfigure.Publisher, logger *zap.Logger) *Provider {
	return &Provider{
		sts:          stsClient,
		service:      service,
		hostAccount:  hostAccount,
		hostCreds:    hostCreds,
		publisher:    publisher,
		logger:       logger,
		sessionCache: gocache.New(sessionCacheTTL, sessionCacheTTL/2),
	}
}

// Accounts returns the lazy account sequence: the hosting account
// first (if configured), then each remote account id in order,
// skipping duplicates and accounts whose role could not be assumed.
// Using iter.Seq2 keeps this generator-based lazy — a caller that
// stops ranging early never triggers assume-role calls for the
// remaining accounts.
func (p *Provider) Accounts(ctx context.Context, cfg Config) iter.Seq2[Account, error] {
	return func(yield func(Account, error) bool) {
		done := map[string]bool{}

		if cfg.ScheduleLambdaAccount {
			done[p.hostAccount] = true
			if !yield(Account{Name: p.hostAccount, Credentials: p.hostCreds}, nil) {
				return
			}
		}

		for _, account := range cfg.RemoteAccountIDs {
			if done[account] {
				p.logger.Warn("accounts: duplicate account already processed, skipping", zap.String("account", account))
				continue
			}
			done[account] = true

			roleArn := fmt.Sprintf("arn:%s:iam::%s:role/%s-%s", cfg.AWSPartition, account, cfg.Namespace, cfg.SchedulerRoleName)
			creds, err := p.assumeRole(ctx, roleArn, account)
			if err != nil {
				if isAccessDenied(err) {
					if pubErr := p.publisher.Publish(ctx, deconfigure.NewAccountDeleteEvent(account)); pubErr != nil {
						p.logger.Error("accounts: deconfigure publish failed", zap.String("account", account), zap.Error(pubErr))
					}
				} else {
					p.logger.Error("accounts: assume role failed", zap.String("account", account), zap.String("role", roleArn), zap.Error(err))
				}
				continue
			}
			if !yield(Account{Name: account, Role: roleArn, Credentials: creds}, nil) {
				return
			}
		}
	}
}

func (p *Provider) assumeRole(ctx context.Context, roleArn, account string) (aws.Credentials, error) {
	if cached, ok := p.sessionCache.Get(roleArn); ok {
		return cached.(aws.Credentials), nil
	}

	sessionName := fmt.Sprintf("%s-scheduler-%s", p.service, account)
	var out *sts.AssumeRoleOutput
	err := retry.Do(
		func() error {
			var err error
			out, err = p.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
				RoleArn:         &roleArn,
				RoleSessionName: &sessionName,
			})
			if err != nil && isAccessDenied(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(5),
		retry.Context(ctx),
	)
	if err != nil {
		return aws.Credentials{}, err
	}

	creds := aws.Credentials{
		AccessKeyID:     *out.Credentials.AccessKeyId,
		SecretAccessKey: *out.Credentials.SecretAccessKey,
		SessionToken:    *out.Credentials.SessionToken,
		Expires:         *out.Credentials.Expiration,
		CanExpire:       true,
	}
	p.sessionCache.Set(roleArn, creds, sessionCacheTTL)
	return creds, nil
}

func isAccessDenied(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "AccessDenied"
	}
	return false
}
