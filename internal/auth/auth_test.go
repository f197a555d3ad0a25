package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	values map[string]string
	calls  int
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("expected decryption")
	}
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}, nil
}

func TestToken(t *testing.T) {
	c := Credentials{User: "user", Password: "pass"}
	if got := c.Token(); got != "dXNlcjpwYXNz" {
		t.Errorf("unexpected token %q", got)
	}
}

func TestResolvePasswordExplicitWins(t *testing.T) {
	f := &fakeSSM{values: map[string]string{"/p": "from-ssm"}}
	r := &Resolver{SSM: f, Prompt: func(string) (string, error) {
		t.Error("prompt should not be used")
		return "", nil
	}}

	pw, err := r.ResolvePassword(context.Background(), "user", "from-flag", "/p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pw != "from-flag" || f.calls != 0 {
		t.Errorf("expected explicit password without SSM call, got %q (%d calls)", pw, f.calls)
	}
}

func TestResolvePasswordFromSSM(t *testing.T) {
	r := &Resolver{SSM: &fakeSSM{values: map[string]string{"/uploader/password": "s3cret"}}}

	pw, err := r.ResolvePassword(context.Background(), "user", "", "/uploader/password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pw != "s3cret" {
		t.Errorf("expected password from SSM, got %q", pw)
	}
}

func TestResolvePasswordSSMMissing(t *testing.T) {
	r := &Resolver{SSM: &fakeSSM{}}

	_, err := r.ResolvePassword(context.Background(), "user", "", "/missing")
	var pwErr *PasswordError
	if !errors.As(err, &pwErr) || pwErr.Source != "ssm" {
		t.Fatalf("expected ssm PasswordError, got %v", err)
	}
	var notFound *types.ParameterNotFound
	if !errors.As(err, &notFound) {
		t.Error("expected the SSM error to be wrapped")
	}
}

func TestResolvePasswordPrompt(t *testing.T) {
	var asked string
	r := &Resolver{Prompt: func(user string) (string, error) {
		asked = user
		return "typed", nil
	}}

	pw, err := r.ResolvePassword(context.Background(), "operator", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pw != "typed" || asked != "operator" {
		t.Errorf("unexpected prompt result %q for %q", pw, asked)
	}
}

func TestResolvePasswordNoSource(t *testing.T) {
	r := &Resolver{}
	if _, err := r.ResolvePassword(context.Background(), "user", "", ""); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword, got %v", err)
	}

	r.Prompt = func(string) (string, error) { return "", nil }
	if _, err := r.ResolvePassword(context.Background(), "user", "", ""); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword for empty input, got %v", err)
	}
}
