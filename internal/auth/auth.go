// Package auth resolves the uploader's server credentials and builds the
// basic auth token the server client sends with every request.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ErrNoPassword is returned when no source provided a password.
var ErrNoPassword = errors.New("password not found. Use --password, MISSION_UPLOADER_PASSWORD or --password-ssm-param")

// Credentials identify the uploader to the server.
type Credentials struct {
	User     string
	Password string
}

// Token returns the base64 "user:password" basic auth token.
func (c Credentials) Token() string {
	return base64.StdEncoding.EncodeToString([]byte(c.User + ":" + c.Password))
}

// PasswordError reports a failing password source.
type PasswordError struct {
	// Source is "ssm" or "prompt".
	Source string
	Err    error
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("read password from %s: %v", e.Source, e.Err)
}

func (e *PasswordError) Unwrap() error { return e.Err }

// ParameterAPI is the SSM call used to read the password parameter.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver finds the password. A nil SSM client is created from the default
// AWS configuration on first use; a nil Prompt disables prompting.
type Resolver struct {
	SSM    ParameterAPI
	Prompt func(user string) (string, error)
}

// ResolvePassword returns the password from the first available source.
// Priority order:
//  1. explicit (flag, environment or config file)
//  2. SSM Parameter Store SecureString named by ssmParam
//  3. interactive prompt
func (r *Resolver) ResolvePassword(ctx context.Context, user, explicit, ssmParam string) (string, error) {
	if explicit != "" {
		log.Debug().Msg("Using password from flag or environment")
		return explicit, nil
	}

	if ssmParam != "" {
		pw, err := r.fromSSM(ctx, ssmParam)
		if err != nil {
			return "", &PasswordError{Source: "ssm", Err: err}
		}
		return pw, nil
	}

	if r.Prompt != nil {
		pw, err := r.Prompt(user)
		if err != nil {
			return "", &PasswordError{Source: "prompt", Err: err}
		}
		if pw != "" {
			return pw, nil
		}
	}
	return "", ErrNoPassword
}

func (r *Resolver) fromSSM(ctx context.Context, param string) (string, error) {
	if r.SSM == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("load AWS config: %w", err)
		}
		r.SSM = ssm.NewFromConfig(cfg)
	}

	ssmStart := time.Now()
	result, err := r.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", param, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s is empty", param)
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(ssmStart)).Msg("Password loaded from SSM")
	return aws.ToString(result.Parameter.Value), nil
}
