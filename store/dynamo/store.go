// Package dynamo implements store.Store on DynamoDB, the primary
// production backend. Items live in a single table under a composite
// (PK, SK) key; conditional expressions carry the optimistic-concurrency
// guards, and the table's TTL attribute (expires_at) sweeps expired lock
// items.
//
// Usage:
//
//	client, err := dynamo.NewClientFromEnv(ctx)
//	s := dynamo.New(client, "steptrack")
//	if err := s.Ping(ctx); err != nil { ... }
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/novaops/steptrack/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by one DynamoDB table.
// The caller owns the client lifecycle; Close never closes it.
type Store struct {
	client *dynamodb.Client
	table  string
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a DynamoDB-backed store over the given table.
func New(client *dynamodb.Client, table string, opts ...Option) *Store {
	s := &Store{client: client, table: table, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClientFromEnv builds a DynamoDB client from the default AWS config
// chain, honoring DYNAMO_ENDPOINT for local development endpoints.
func NewClientFromEnv(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}

	endpoint := os.Getenv("DYNAMO_ENDPOINT")
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

// Migrate is a no-op: the table and its TTL configuration are provisioned
// by infrastructure, not by this runtime.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the table exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Close is a no-op; the caller owns the client.
func (s *Store) Close() error { return nil }

// keyAttrs returns the marshalled primary-key attribute map.
func keyAttrs(key store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key.Partition},
		"SK": &types.AttributeValueMemberS{Value: key.Sort},
	}
}

// Insert writes the item with an attribute_not_exists condition on the
// full key: first writer wins.
func (s *Store) Insert(ctx context.Context, key store.Key, attrs store.Attributes) error {
	item, err := attributevalue.MarshalMap(map[string]any(attrs))
	if err != nil {
		return fmt.Errorf("dynamo: marshal item %s: %w", key, err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: key.Partition}
	item["SK"] = &types.AttributeValueMemberS{Value: key.Sort}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Update applies a SET expression under the guard's condition expression.
func (s *Store) Update(ctx context.Context, key store.Key, set store.Attributes, guard store.Guard) error {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	parts := make([]string, 0, len(set))

	i := 0
	for attr, val := range set {
		nameKey := "#a" + strconv.Itoa(i)
		valKey := ":v" + strconv.Itoa(i)
		av, err := attributevalue.Marshal(val)
		if err != nil {
			return fmt.Errorf("dynamo: marshal attribute %q: %w", attr, err)
		}
		names[nameKey] = attr
		values[valKey] = av
		parts = append(parts, nameKey+" = "+valKey)
		i++
	}

	condition := "attribute_exists(PK) AND attribute_exists(SK)"
	if guard.Kind == store.GuardFieldAbsent {
		names["#guard"] = guard.Field
		condition += " AND attribute_not_exists(#guard)"
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       keyAttrs(key),
		UpdateExpression:          aws.String("SET " + strings.Join(parts, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String(condition),
	})
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Delete removes the item unconditionally. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// wrapErr maps SDK failures onto the store contract: conditional-check
// rejections become store.ErrConditionFailed, everything else is
// normalized into *store.Error carrying the AWS error code and transport
// status for classification.
func wrapErr(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("dynamo: %w", store.ErrConditionFailed)
	}

	serr := &store.Error{Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		serr.Code = apiErr.ErrorCode()
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		serr.Status = respErr.HTTPStatusCode()
	}
	return serr
}
