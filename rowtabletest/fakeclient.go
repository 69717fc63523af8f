// Package rowtabletest provides fixtures and a lightweight fake backend
// client used by the root package's own unit tests, the way the teacher's
// mock_dynamo.go wires a backing engine behind AWSDynamoClientV2 for its
// own tests.
package rowtabletest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// itemKey is the map key FakeClient indexes stored items by.
type itemKey struct {
	table string
	pk    string
	sk    string
}

// FakeClient is a minimal in-process stand-in for *dynamodb.Client. It
// stores items verbatim and supports one hook for simulating a failed
// conditional check, plus a canned response queue for
// BatchExecuteStatement, which is enough to exercise rowtable's facade and
// bulk coordinator without a live backend or a full expression evaluator.
type FakeClient struct {
	mu    sync.Mutex
	items map[itemKey]map[string]ddbtypes.AttributeValue

	// PartitionKeyAttr/SortKeyAttr name the two attributes FakeClient reads
	// to index stored items. Defaults to "PK"/"SK".
	PartitionKeyAttr string
	SortKeyAttr      string

	// FailNextConditionalCheck, when true, makes the next PutItem or
	// DeleteItem call that carries a ConditionExpression fail with
	// ConditionalCheckFailedException instead of applying.
	FailNextConditionalCheck bool

	// BatchExecuteStatementResponses is consumed one slice per call to
	// BatchExecuteStatement, in order; once exhausted, calls succeed with
	// no per-statement errors. Ordering across chunks dispatched by the bulk
	// coordinator is not guaranteed, so prefer
	// FailStatementsContaining for tests that care which statements fail.
	BatchExecuteStatementResponses [][]ddbtypes.BatchStatementResponse
	batchCallCount                 int

	// FailStatementsContaining maps a substring to the error a statement
	// whose rendered text contains it should fail with, independent of
	// dispatch order across concurrently issued chunks.
	FailStatementsContaining map[string]ddbtypes.BatchStatementError
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		items:            make(map[itemKey]map[string]ddbtypes.AttributeValue),
		PartitionKeyAttr: "PK",
		SortKeyAttr:      "SK",
	}
}

func (f *FakeClient) keyFromItem(tableName string, item map[string]ddbtypes.AttributeValue) itemKey {
	k := itemKey{table: tableName}
	if pk, ok := item[f.PartitionKeyAttr].(*ddbtypes.AttributeValueMemberS); ok {
		k.pk = pk.Value
	}
	if sk, ok := item[f.SortKeyAttr].(*ddbtypes.AttributeValueMemberS); ok {
		k.sk = sk.Value
	}
	return k
}

func (f *FakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.ConditionExpression != nil && f.FailNextConditionalCheck {
		f.FailNextConditionalCheck = false
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: strPtr("simulated conditional check failure")}
	}
	k := f.keyFromItem(*in.TableName, in.Item)
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.keyFromItem(*in.TableName, in.Key)
	item, ok := f.items[k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *FakeClient) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]ddbtypes.AttributeValue{}}
	for tableName, reqs := range in.RequestItems {
		for _, key := range reqs.Keys {
			k := f.keyFromItem(tableName, key)
			if item, ok := f.items[k]; ok {
				out.Responses[tableName] = append(out.Responses[tableName], item)
			}
		}
	}
	return out, nil
}

func (f *FakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.ConditionExpression != nil && f.FailNextConditionalCheck {
		f.FailNextConditionalCheck = false
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: strPtr("simulated conditional check failure")}
	}
	k := f.keyFromItem(*in.TableName, in.Key)
	delete(f.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *FakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("rowtabletest: FakeClient does not evaluate KeyConditionExpression; use rowstore for query tests")
}

func (f *FakeClient) BatchExecuteStatement(ctx context.Context, in *dynamodb.BatchExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchExecuteStatementOutput, error) {
	f.mu.Lock()
	callIndex := f.batchCallCount
	f.batchCallCount++
	f.mu.Unlock()

	if len(f.FailStatementsContaining) > 0 {
		responses := make([]ddbtypes.BatchStatementResponse, len(in.Statements))
		for i, stmt := range in.Statements {
			for substr, batchErr := range f.FailStatementsContaining {
				if stmt.Statement != nil && strings.Contains(*stmt.Statement, substr) {
					batchErr := batchErr
					responses[i].Error = &batchErr
					break
				}
			}
		}
		return &dynamodb.BatchExecuteStatementOutput{Responses: responses}, nil
	}

	if callIndex < len(f.BatchExecuteStatementResponses) {
		return &dynamodb.BatchExecuteStatementOutput{Responses: f.BatchExecuteStatementResponses[callIndex]}, nil
	}
	responses := make([]ddbtypes.BatchStatementResponse, len(in.Statements))
	return &dynamodb.BatchExecuteStatementOutput{Responses: responses}, nil
}

func strPtr(s string) *string { return &s }
