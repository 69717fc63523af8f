package rowtable

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxStatementsPerBatch is the backend's per-call statement limit; entries
// are chunked to at most this many per BatchExecuteStatement call.
const MaxStatementsPerBatch = 25

// WriteEntry is one entry of a bulk write: an insert, a version-gated
// update, an unconditional delete by key, or a version-gated delete of a
// known existing item. It type-erases its payload type P so a single slice
// of WriteEntry can mix rows of different shapes under one partition.
type WriteEntry interface {
	renderStatement(tableName string, schema KeySchema) (string, error)
}

type insertEntry[P any] struct{ row Row[P] }

func (e insertEntry[P]) renderStatement(tableName string, schema KeySchema) (string, error) {
	item, err := encodeRow(schema, e.row)
	if err != nil {
		return "", err
	}
	return renderInsertStatement(tableName, item)
}

// InsertEntry builds a bulk-write entry that inserts row.
func InsertEntry[P any](row Row[P]) WriteEntry { return insertEntry[P]{row: row} }

type updateEntry[P any] struct {
	newRow, existing Row[P]
}

func (e updateEntry[P]) renderStatement(tableName string, schema KeySchema) (string, error) {
	newItem, err := encodeRow(schema, e.newRow)
	if err != nil {
		return "", err
	}
	existingItem, err := encodeRow(schema, e.existing)
	if err != nil {
		return "", err
	}
	diffs, err := Diff(newItem, existingItem)
	if err != nil {
		return "", err
	}
	return renderUpdateStatement(tableName, schema, e.newRow.Key, e.existing.Status.RowVersion, diffs)
}

// UpdateEntry builds a bulk-write entry that diffs newRow against existing
// and renders the resulting UPDATE statement.
func UpdateEntry[P any](newRow, existing Row[P]) WriteEntry {
	return updateEntry[P]{newRow: newRow, existing: existing}
}

type deleteAtKeyEntry struct{ key Key }

func (e deleteAtKeyEntry) renderStatement(tableName string, schema KeySchema) (string, error) {
	return renderDeleteByKeyStatement(tableName, schema, e.key)
}

// DeleteAtKeyEntry builds a bulk-write entry that unconditionally deletes key.
func DeleteAtKeyEntry(key Key) WriteEntry { return deleteAtKeyEntry{key: key} }

type deleteItemEntry[P any] struct{ existing Row[P] }

func (e deleteItemEntry[P]) renderStatement(tableName string, schema KeySchema) (string, error) {
	return renderDeleteByItemStatement(tableName, schema, e.existing.Key, e.existing.Status.RowVersion)
}

// DeleteItemEntry builds a bulk-write entry that deletes existing, gated on
// its stored rowVersion.
func DeleteItemEntry[P any](existing Row[P]) WriteEntry { return deleteItemEntry[P]{existing: existing} }

// BulkWriteResult is the coordinator's summary of a completed call.
type BulkWriteResult struct {
	ChunkCount int
}

// BulkWrite chunks entries to MaxStatementsPerBatch, dispatches the chunks
// concurrently (bounded by t.MaxBatchConcurrency), and aggregates any
// per-statement errors into *BatchErrorsReturnedError. Entries may mix
// different payload types since WriteEntry type-erases P.
func BulkWrite(ctx context.Context, t *Table, entries []WriteEntry) (*BulkWriteResult, error) {
	if len(entries) == 0 {
		return &BulkWriteResult{}, nil
	}

	statements := make([]ddbtypes.BatchStatementRequest, len(entries))
	for i, e := range entries {
		rendered, err := e.renderStatement(t.TableName, t.Schema)
		if err != nil {
			return nil, err
		}
		statements[i] = ddbtypes.BatchStatementRequest{
			Statement:      stringPtr(rendered),
			ConsistentRead: boolPtr(true),
		}
	}

	chunks := chunkStatements(statements, MaxStatementsPerBatch)

	sem := make(chan struct{}, maxConcurrency(t.MaxBatchConcurrency))
	var wg sync.WaitGroup
	responses := make([][]ddbtypes.BatchStatementResponse, len(chunks))
	errs := make([]error, len(chunks))

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []ddbtypes.BatchStatementRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			t.Logger.Printf("rowtable: dispatching chunk %d/%d (%d statements)", i+1, len(chunks), len(chunk))
			out, err := t.Client.BatchExecuteStatement(ctx, &dynamodb.BatchExecuteStatementInput{Statements: chunk})
			if err != nil {
				errs[i] = err
				return
			}
			responses[i] = out.Responses
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	errorCount := 0
	messageCounts := map[string]int{}
	for _, chunkResponses := range responses {
		for _, resp := range chunkResponses {
			if resp.Error == nil {
				continue
			}
			errorCount++
			messageCounts[batchErrorKey(resp.Error)]++
		}
	}
	if errorCount > 0 {
		return nil, &BatchErrorsReturnedError{ErrorCount: errorCount, MessageCounts: messageCounts}
	}

	return &BulkWriteResult{ChunkCount: len(chunks)}, nil
}

type monomorphicKind int

const (
	monomorphicInsert monomorphicKind = iota
	monomorphicUpdate
	monomorphicDelete
)

// MonomorphicWriteEntry is one entry of a bulk write known statically to
// carry payload type P, so BulkWriteMonomorphic's caller never has to box
// its rows behind the WriteEntry interface the way heterogeneous BulkWrite
// callers do.
type MonomorphicWriteEntry[P any] struct {
	kind     monomorphicKind
	row      Row[P]
	existing Row[P]
}

// InsertMonomorphicEntry builds a monomorphic bulk-write entry that inserts row.
func InsertMonomorphicEntry[P any](row Row[P]) MonomorphicWriteEntry[P] {
	return MonomorphicWriteEntry[P]{kind: monomorphicInsert, row: row}
}

// UpdateMonomorphicEntry builds a monomorphic bulk-write entry that diffs
// newRow against existing.
func UpdateMonomorphicEntry[P any](newRow, existing Row[P]) MonomorphicWriteEntry[P] {
	return MonomorphicWriteEntry[P]{kind: monomorphicUpdate, row: newRow, existing: existing}
}

// DeleteMonomorphicEntry builds a monomorphic bulk-write entry that deletes
// existing, gated on its stored rowVersion.
func DeleteMonomorphicEntry[P any](existing Row[P]) MonomorphicWriteEntry[P] {
	return MonomorphicWriteEntry[P]{kind: monomorphicDelete, existing: existing}
}

func (e MonomorphicWriteEntry[P]) toWriteEntry() WriteEntry {
	switch e.kind {
	case monomorphicUpdate:
		return UpdateEntry(e.row, e.existing)
	case monomorphicDelete:
		return DeleteItemEntry(e.existing)
	default:
		return InsertEntry(e.row)
	}
}

// BulkWriteMonomorphic is BulkWrite specialized to a single payload type P:
// it takes entries for one concrete payload shape, so none of them needs
// the WriteEntry boxing BulkWrite's heterogeneous entries require.
func BulkWriteMonomorphic[P any](ctx context.Context, t *Table, entries []MonomorphicWriteEntry[P]) (*BulkWriteResult, error) {
	boxed := make([]WriteEntry, len(entries))
	for i, e := range entries {
		boxed[i] = e.toWriteEntry()
	}
	return BulkWrite(ctx, t, boxed)
}

// batchErrorKey joins the non-empty parts of a per-statement error with
// ':' per the aggregation rule: messageKey = "<code>:<message>".
func batchErrorKey(err *ddbtypes.BatchStatementError) string {
	var parts []string
	if code := string(err.Code); code != "" {
		parts = append(parts, code)
	}
	if err.Message != nil && *err.Message != "" {
		parts = append(parts, *err.Message)
	}
	return strings.Join(parts, ":")
}

func chunkStatements(statements []ddbtypes.BatchStatementRequest, size int) [][]ddbtypes.BatchStatementRequest {
	var chunks [][]ddbtypes.BatchStatementRequest
	for i := 0; i < len(statements); i += size {
		end := i + size
		if end > len(statements) {
			end = len(statements)
		}
		chunks = append(chunks, statements[i:end])
	}
	return chunks
}

func maxConcurrency(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func stringPtr(s string) *string { return &s }
