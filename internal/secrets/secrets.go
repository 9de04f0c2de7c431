// Package secrets resolves startup secrets held outside the process
// environment.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// SSMAPI is the part of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AccessToken reads a SecureString parameter and returns its trimmed value.
// An empty parameter is an error: a configured but blank source would
// silently disable the guard.
func AccessToken(ctx context.Context, client SSMAPI, name string) (string, error) {
	if client == nil {
		return "", xerrors.New("no SSM client")
	}
	if name == "" {
		return "", xerrors.New("SSM parameter name is required")
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}

	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", name)
	}
	return v, nil
}

// ResolveAccessToken prefers the literal token, then the SSM parameter.
// Neither set means no token and no error.
func ResolveAccessToken(ctx context.Context, literal, param string, client func(context.Context) (SSMAPI, error)) (string, error) {
	if literal != "" || param == "" {
		return literal, nil
	}
	c, err := client(ctx)
	if err != nil {
		return "", xerrors.Wrap(err, "ssm client")
	}
	return AccessToken(ctx, c, param)
}
