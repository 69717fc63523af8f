package rowtable

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewDefaultAWSClient resolves credentials and region the standard
// aws-sdk-go-v2 way and returns a ready-to-use *dynamodb.Client. It carries
// no retry or credential logic of its own — that resolution is an external
// collaborator's concern per this package's scope.
func NewDefaultAWSClient(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}
