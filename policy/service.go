// Package policy serves the password policy of the Cognito user pool so
// clients can validate passwords before signing up.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/wulf-data-engineering/wulfpack"
	"github.com/wulf-data-engineering/wulfpack/protocols"
)

// EndpointName identifies the policy endpoint in error signals.
const EndpointName = "password-policy"

// DefaultMinimumLength applies when the pool does not state a minimum length.
const DefaultMinimumLength = 6

var (
	// ErrNoUserPool is returned when DescribeUserPool answers without a pool.
	ErrNoUserPool = errors.New("policy: user pool not found")

	// ErrNoPasswordPolicy is returned when the pool carries no password policy.
	ErrNoPasswordPolicy = errors.New("policy: user pool has no password policy")
)

// CognitoAPI is the subset of the Cognito identity provider client used here.
type CognitoAPI interface {
	DescribeUserPool(ctx context.Context, params *cognitoidentityprovider.DescribeUserPoolInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DescribeUserPoolOutput, error)
}

// Service reads the password policy of one user pool.
type Service struct {
	client     CognitoAPI
	userPoolID string
}

// NewService creates a Service for the pool userPoolID.
func NewService(client CognitoAPI, userPoolID string) *Service {
	return &Service{client: client, userPoolID: userPoolID}
}

// PasswordPolicy fetches the current password policy.
func (s *Service) PasswordPolicy(ctx context.Context) (protocols.PasswordPolicy, error) {
	out, err := s.client.DescribeUserPool(ctx, &cognitoidentityprovider.DescribeUserPoolInput{
		UserPoolId: aws.String(s.userPoolID),
	})
	if err != nil {
		return protocols.PasswordPolicy{}, fmt.Errorf("policy: describe user pool %s: %w", s.userPoolID, err)
	}
	if out == nil || out.UserPool == nil {
		return protocols.PasswordPolicy{}, ErrNoUserPool
	}
	if out.UserPool.Policies == nil || out.UserPool.Policies.PasswordPolicy == nil {
		return protocols.PasswordPolicy{}, ErrNoPasswordPolicy
	}

	p := out.UserPool.Policies.PasswordPolicy
	minimum := int32(DefaultMinimumLength)
	if p.MinimumLength != nil {
		minimum = *p.MinimumLength
	}
	return protocols.PasswordPolicy{
		MinimumLength:    minimum,
		RequireUppercase: p.RequireUppercase,
		RequireLowercase: p.RequireLowercase,
		RequireNumbers:   p.RequireNumbers,
		RequireSymbols:   p.RequireSymbols,
	}, nil
}

// Endpoint exposes PasswordPolicy as a protocol endpoint. The request body is
// ignored apart from its framing.
func (s *Service) Endpoint(pipelineOpts []wulfpack.Option[*protocols.Empty, protocols.PasswordPolicy], opts ...wulfpack.EndpointOption[*protocols.Empty, protocols.PasswordPolicy]) *wulfpack.Endpoint[*protocols.Empty, protocols.PasswordPolicy] {
	return wulfpack.NewEndpoint(EndpointName, func(ctx context.Context, _ *protocols.Empty) (protocols.PasswordPolicy, error) {
		return s.PasswordPolicy(ctx)
	}, pipelineOpts, opts...)
}
