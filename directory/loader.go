package directory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	saerrors "github.com/byteness/supportaccess/errors"
)

// Loader loads a directory from a source.
type Loader interface {
	Load(ctx context.Context) (*StaticDirectory, error)
}

// FileLoader reads the directory document from a local file.
type FileLoader struct {
	Path string
}

// Load reads and parses the file. A missing file wraps ErrDirectoryNotFound.
func (l FileLoader) Load(_ context.Context) (*StaticDirectory, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", l.Path, ErrDirectoryNotFound)
		}
		return nil, fmt.Errorf("read directory %s: %w", l.Path, err)
	}
	d, err := ParseDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return d, nil
}

// SSMAPI defines the SSM operations used by SSMLoader.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMLoader fetches the directory document from SSM Parameter Store.
// SecureString parameters are decrypted.
type SSMLoader struct {
	client    SSMAPI
	parameter string
}

// NewSSMLoader creates an SSMLoader using the provided AWS configuration.
func NewSSMLoader(cfg aws.Config, parameter string) *SSMLoader {
	return &SSMLoader{
		client:    ssm.NewFromConfig(cfg),
		parameter: parameter,
	}
}

// NewSSMLoaderWithClient creates an SSMLoader with a custom SSM client.
func NewSSMLoaderWithClient(client SSMAPI, parameter string) *SSMLoader {
	return &SSMLoader{
		client:    client,
		parameter: parameter,
	}
}

// Fetch returns the raw parameter value. A missing parameter wraps
// ErrDirectoryNotFound; other SSM failures are returned as AccessErrors with
// a suggestion.
func (l *SSMLoader) Fetch(ctx context.Context) ([]byte, error) {
	output, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.parameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s: %w", l.parameter, ErrDirectoryNotFound)
		}
		return nil, saerrors.WrapSSMError(err, l.parameter)
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return nil, fmt.Errorf("%s: parameter has no value", l.parameter)
	}
	return []byte(*output.Parameter.Value), nil
}

// Load fetches and parses the parameter.
func (l *SSMLoader) Load(ctx context.Context) (*StaticDirectory, error) {
	data, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	d, err := ParseDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.parameter, err)
	}
	return d, nil
}
