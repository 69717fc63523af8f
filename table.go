package rowtable

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Logger is satisfied by *log.Logger with zero adaptation. It is used only
// for the bulk coordinator's chunk trace and never for payload bodies.
type Logger interface {
	Printf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Table is the public facade: a stateless handle over a backend RPC client,
// a table name and a key schema. It is safe to share across goroutines.
type Table struct {
	Client               Client
	TableName            string
	Schema               KeySchema
	MaxBatchConcurrency  int
	Logger               Logger
}

// Option configures a Table at construction time.
type Option func(*Table)

func WithMaxBatchConcurrency(n int) Option {
	return func(t *Table) { t.MaxBatchConcurrency = n }
}

func WithLogger(l Logger) Option {
	return func(t *Table) { t.Logger = l }
}

// NewTable builds a Table from a Client, table name, and key schema.
func NewTable(client Client, tableName string, schema KeySchema, opts ...Option) *Table {
	t := &Table{
		Client:              client,
		TableName:           tableName,
		Schema:              schema,
		MaxBatchConcurrency: 4,
		Logger:              noopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func conditionalCheckFailed(err error, key Key, message string) error {
	var ccf *ddbtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &ConditionalCheckFailedError{PartitionKey: key.PartitionKey, SortKey: key.SortKey, Message: message}
	}
	return err
}

// Insert sends PutItem with the attribute-not-exists condition. It fails
// with *ConditionalCheckFailedError if the row is already present.
func Insert[P any](ctx context.Context, t *Table, row Row[P]) error {
	item, err := encodeRow(t.Schema, row)
	if err != nil {
		return err
	}
	ddbItem, err := mapToDDB(item)
	if err != nil {
		return err
	}
	cond, err := buildInsertCondition(t.Schema)
	if err != nil {
		return fmt.Errorf("build insert condition: %w", err)
	}
	_, err = t.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &t.TableName,
		Item:                      ddbItem,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return conditionalCheckFailed(err, row.Key, "Row already exists.")
	}
	return nil
}

// Clobber sends PutItem unconditionally.
func Clobber[P any](ctx context.Context, t *Table, row Row[P]) error {
	item, err := encodeRow(t.Schema, row)
	if err != nil {
		return err
	}
	ddbItem, err := mapToDDB(item)
	if err != nil {
		return err
	}
	_, err = t.Client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &t.TableName, Item: ddbItem})
	return err
}

// Update sends PutItem with the rowVersion+createDate condition checked
// against existing. The caller must have set
// newRow.Status.RowVersion = existing.Status.RowVersion + 1 and refreshed
// LastUpdateDate before calling.
func Update[P any](ctx context.Context, t *Table, newRow, existing Row[P]) error {
	item, err := encodeRow(t.Schema, newRow)
	if err != nil {
		return err
	}
	ddbItem, err := mapToDDB(item)
	if err != nil {
		return err
	}
	cond, err := buildVersionCondition(existing.Status.RowVersion, existing.CreateDate)
	if err != nil {
		return fmt.Errorf("build update condition: %w", err)
	}
	_, err = t.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &t.TableName,
		Item:                      ddbItem,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return conditionalCheckFailed(err, newRow.Key, "Trying to overwrite incorrect version.")
	}
	return nil
}

func keyToDDB(schema KeySchema, key Key) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		schema.PartitionKeyAttr: &ddbtypes.AttributeValueMemberS{Value: key.PartitionKey},
		schema.SortKeyAttr:      &ddbtypes.AttributeValueMemberS{Value: key.SortKey},
	}
}

// Get performs a strongly consistent GetItem and decodes the result via
// registry. It returns (nil, nil) if the row does not exist.
func Get[R any](ctx context.Context, t *Table, key Key, registry *Registry[R]) (*Row[R], error) {
	out, err := t.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &t.TableName,
		Key:            keyToDDB(t.Schema, key),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	stored := mapFromDDB(out.Item)
	row, err := decodeRow[R](t.Schema, stored)
	if err != nil {
		return nil, err
	}
	decoded, err := registry.Decode(stored)
	if err != nil {
		return nil, err
	}
	row.Payload = decoded
	return &row, nil
}

// BatchGet issues a single BatchGetItem call (it does not paginate; the
// caller bounds the key count) and returns only the keys that existed.
func BatchGet[R any](ctx context.Context, t *Table, keys []Key, registry *Registry[R]) (map[Key]Row[R], error) {
	result := make(map[Key]Row[R], len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	ddbKeys := make([]map[string]ddbtypes.AttributeValue, len(keys))
	for i, k := range keys {
		ddbKeys[i] = keyToDDB(t.Schema, k)
	}
	out, err := t.Client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]ddbtypes.KeysAndAttributes{
			t.TableName: {Keys: ddbKeys, ConsistentRead: boolPtr(true)},
		},
	})
	if err != nil {
		return nil, err
	}
	for _, item := range out.Responses[t.TableName] {
		stored := mapFromDDB(item)
		row, err := decodeRow[R](t.Schema, stored)
		if err != nil {
			return nil, err
		}
		decoded, err := registry.Decode(stored)
		if err != nil {
			return nil, err
		}
		row.Payload = decoded
		result[row.Key] = row
	}
	return result, nil
}

// DeleteAtKey sends an unconditional DeleteItem.
func DeleteAtKey(ctx context.Context, t *Table, key Key) error {
	_, err := t.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &t.TableName,
		Key:       keyToDDB(t.Schema, key),
	})
	return err
}

// DeleteItem sends a conditional DeleteItem guarded by existing's
// rowVersion and createDate.
func DeleteItem[P any](ctx context.Context, t *Table, existing Row[P]) error {
	cond, err := buildVersionCondition(existing.Status.RowVersion, existing.CreateDate)
	if err != nil {
		return fmt.Errorf("build delete condition: %w", err)
	}
	_, err = t.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 &t.TableName,
		Key:                       keyToDDB(t.Schema, existing.Key),
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return conditionalCheckFailed(err, existing.Key, "Trying to delete incorrect version.")
	}
	return nil
}

// DeleteItems deletes every key unconditionally via the bulk coordinator,
// the key-seeded overload of spec.md §4.3's deleteItems.
func DeleteItems(ctx context.Context, t *Table, keys []Key) (*BulkWriteResult, error) {
	entries := make([]WriteEntry, len(keys))
	for i, k := range keys {
		entries[i] = DeleteAtKeyEntry(k)
	}
	return BulkWrite(ctx, t, entries)
}

// DeleteItemsExisting deletes every row in existing via the bulk
// coordinator, each gated on its own stored rowVersion (the delete
// statement does not check createDate). This
// is the existing-item-seeded overload of spec.md §4.3's deleteItems.
func DeleteItemsExisting[P any](ctx context.Context, t *Table, existing []Row[P]) (*BulkWriteResult, error) {
	entries := make([]WriteEntry, len(existing))
	for i, row := range existing {
		entries[i] = DeleteItemEntry(row)
	}
	return BulkWrite(ctx, t, entries)
}

// QueryPage is one page returned by Query: the decoded rows in the page and
// an opaque token for the next page, nil when exhausted.
type QueryPage[R any] struct {
	Rows      []Row[R]
	NextToken *string
}

// QueryOptions configures a single Query call.
type QueryOptions struct {
	Limit          int32
	ScanForward    bool
	ConsistentRead bool
	StartToken     *string
}

// Query returns one page of rows from partitionKey, optionally narrowed by
// a sort-key condition, via the real backend's native paging.
func Query[R any](ctx context.Context, t *Table, partitionKey string, cond *SortKeyCondition, opts QueryOptions, registry *Registry[R]) (*QueryPage[R], error) {
	keyCond := expression.KeyEqual(expression.Key(t.Schema.PartitionKeyAttr), expression.Value(partitionKey))
	if cond != nil {
		keyCond = keyCond.And(cond.keyCondition(t.Schema.SortKeyAttr))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	exclusiveStart, err := decodeQueryToken(opts.StartToken)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 &t.TableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            boolPtr(opts.ConsistentRead),
		ScanIndexForward:          boolPtr(opts.ScanForward),
		ExclusiveStartKey:         exclusiveStart,
	}
	if opts.Limit > 0 {
		input.Limit = int32Ptr(opts.Limit)
	}

	out, err := t.Client.Query(ctx, input)
	if err != nil {
		return nil, err
	}

	rows := make([]Row[R], 0, len(out.Items))
	for _, item := range out.Items {
		stored := mapFromDDB(item)
		row, err := decodeRow[R](t.Schema, stored)
		if err != nil {
			return nil, err
		}
		decoded, err := registry.Decode(stored)
		if err != nil {
			return nil, err
		}
		row.Payload = decoded
		rows = append(rows, row)
	}

	nextToken, err := encodeQueryToken(out.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}
	return &QueryPage[R]{Rows: rows, NextToken: nextToken}, nil
}

// QueryAll loops Query until NextToken is nil, the same composition Table
// callers would otherwise have to write by hand.
func QueryAll[R any](ctx context.Context, t *Table, partitionKey string, cond *SortKeyCondition, consistent bool, registry *Registry[R]) ([]Row[R], error) {
	var all []Row[R]
	opts := QueryOptions{ScanForward: true, ConsistentRead: consistent}
	for {
		page, err := Query(ctx, t, partitionKey, cond, opts, registry)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Rows...)
		if page.NextToken == nil {
			break
		}
		opts.StartToken = page.NextToken
	}
	return all, nil
}

func encodeQueryToken(key map[string]ddbtypes.AttributeValue) (*string, error) {
	if len(key) == 0 {
		return nil, nil
	}
	stored := mapFromDDB(key)
	blob, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode query token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(blob)
	return &token, nil
}

func decodeQueryToken(token *string) (map[string]ddbtypes.AttributeValue, error) {
	if token == nil {
		return nil, nil
	}
	blob, err := base64.RawURLEncoding.DecodeString(*token)
	if err != nil {
		return nil, &UnexpectedResponseError{Reason: fmt.Sprintf("malformed query token: %v", err)}
	}
	var stored map[string]AttrValue
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, &UnexpectedResponseError{Reason: fmt.Sprintf("malformed query token: %v", err)}
	}
	return mapToDDB(stored)
}

func boolPtr(b bool) *bool     { return &b }
func int32Ptr(n int32) *int32  { return &n }
