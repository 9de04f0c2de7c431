package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	value *string
	err   error
	in    *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestAccessToken_TrimsAndDecrypts(t *testing.T) {
	f := &fakeSSM{value: aws.String("  s3cret\n")}

	got, err := AccessToken(context.Background(), f, "/titiler/token")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("token = %q", got)
	}
	if aws.ToString(f.in.Name) != "/titiler/token" || !aws.ToBool(f.in.WithDecryption) {
		t.Fatalf("input = %+v", f.in)
	}
}

func TestAccessToken_Errors(t *testing.T) {
	cases := map[string]struct {
		client SSMAPI
		name   string
		want   string
	}{
		"nil client":  {nil, "/p", "no SSM client"},
		"no name":     {&fakeSSM{}, "", "name is required"},
		"api error":   {&fakeSSM{err: errors.New("AccessDeniedException")}, "/p", "get SSM parameter /p"},
		"no value":    {&fakeSSM{}, "/p", "has no value"},
		"blank value": {&fakeSSM{value: aws.String("   ")}, "/p", "is empty"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := AccessToken(context.Background(), tc.client, tc.name)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestResolveAccessToken(t *testing.T) {
	calls := 0
	client := func(context.Context) (SSMAPI, error) {
		calls++
		return &fakeSSM{value: aws.String("from-ssm")}, nil
	}
	ctx := context.Background()

	if got, _ := ResolveAccessToken(ctx, "literal", "/p", client); got != "literal" {
		t.Fatalf("literal should win, got %q", got)
	}
	if got, err := ResolveAccessToken(ctx, "", "", client); got != "" || err != nil {
		t.Fatalf("nothing configured: %q %v", got, err)
	}
	if calls != 0 {
		t.Fatal("SSM should not be contacted unless needed")
	}
	if got, _ := ResolveAccessToken(ctx, "", "/p", client); got != "from-ssm" {
		t.Fatalf("got %q", got)
	}

	failing := func(context.Context) (SSMAPI, error) { return nil, errors.New("no region") }
	if _, err := ResolveAccessToken(ctx, "", "/p", failing); err == nil {
		t.Fatal("client construction failure should surface")
	}
}
