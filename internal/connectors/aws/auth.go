// Package aws loads AWS configuration for the run metrics publisher.
package aws

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultSessionName names the STS session when Options.SessionName is empty.
const DefaultSessionName = "amendment-diff-metrics"

// Options selects where the metrics publisher's credentials come from.
type Options struct {
	Region  string
	Profile string
	// RoleARN, when set, is assumed through STS on top of the base
	// credentials. CloudTrail shows the calls under SessionName.
	RoleARN     string
	SessionName string
}

// STS accepts 2-64 characters from [\w+=,.@-].
var sessionNameInvalid = regexp.MustCompile(`[^\w+=,.@-]`)

// sessionName returns a session name STS will accept.
func sessionName(name string) string {
	name = sessionNameInvalid.ReplaceAllString(name, "-")
	if len(name) < 2 {
		return DefaultSessionName
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// LoadConfig resolves an aws.Config for opts.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.Profile != "" {
		load = append(load, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("aws auth: load config: %w", err)
	}
	if opts.RoleARN == "" {
		return cfg, nil
	}

	session := sessionName(opts.SessionName)
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), opts.RoleARN,
		func(o *stscreds.AssumeRoleOptions) { o.RoleSessionName = session })
	cfg.Credentials = aws.NewCredentialsCache(provider)
	return cfg, nil
}
