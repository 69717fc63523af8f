package rowtable_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavasystems/rowtable"
	"github.com/kavasystems/rowtable/rowtabletest"
)

func TestBulkWrite_EmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	client := rowtabletest.NewFakeClient()
	tbl := rowtable.NewTable(client, "widgets", rowtabletest.KeySchema)

	result, err := rowtable.BulkWrite(ctx, tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkCount)
}

func TestBulkWrite_ChunksAndAggregatesErrors(t *testing.T) {
	ctx := context.Background()
	client := rowtabletest.NewFakeClient()
	client.FailStatementsContaining = map[string]ddbtypes.BatchStatementError{
		"'S005'": {Code: "DuplicateItem", Message: strPtr("x")},
		"'S042'": {Code: "ValidationException", Message: strPtr("y")},
	}
	tbl := rowtable.NewTable(client, "widgets", rowtabletest.KeySchema)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]rowtable.WriteEntry, 60)
	for i := 0; i < 60; i++ {
		row := rowtable.Row[rowtabletest.WidgetV1]{
			Key:        rowtable.Key{PartitionKey: "P", SortKey: fmt.Sprintf("S%03d", i+1)},
			CreateDate: now,
			Status:     rowtable.RowStatus{RowVersion: 1, LastUpdateDate: now},
			RowTypeTag: rowtabletest.WidgetRowType,
			Payload:    rowtabletest.WidgetV1{Name: "w", Count: i},
		}
		entries[i] = rowtable.InsertEntry(row)
	}

	_, err := rowtable.BulkWrite(ctx, tbl, entries)
	require.Error(t, err)

	var batchErr *rowtable.BatchErrorsReturnedError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.ErrorCount)
	assert.Equal(t, map[string]int{
		"DuplicateItem:x":       1,
		"ValidationException:y": 1,
	}, batchErr.MessageCounts)
}

func TestBulkWrite_ChunkCountForSixtyEntries(t *testing.T) {
	ctx := context.Background()
	client := rowtabletest.NewFakeClient()
	tbl := rowtable.NewTable(client, "widgets", rowtabletest.KeySchema)

	entries := make([]rowtable.WriteEntry, 60)
	for i := 0; i < 60; i++ {
		entries[i] = rowtable.DeleteAtKeyEntry(rowtable.Key{PartitionKey: "P", SortKey: fmt.Sprintf("S%03d", i+1)})
	}

	result, err := rowtable.BulkWrite(ctx, tbl, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunkCount)
}

func TestBulkWriteMonomorphic_InsertsTypedEntries(t *testing.T) {
	ctx := context.Background()
	client := rowtabletest.NewFakeClient()
	tbl := rowtable.NewTable(client, "widgets", rowtabletest.KeySchema)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]rowtable.Row[rowtabletest.WidgetV1], 3)
	entries := make([]rowtable.MonomorphicWriteEntry[rowtabletest.WidgetV1], 3)
	for i := range rows {
		rows[i] = rowtable.Row[rowtabletest.WidgetV1]{
			Key:        rowtable.Key{PartitionKey: "P", SortKey: fmt.Sprintf("S%d", i)},
			CreateDate: now,
			Status:     rowtable.RowStatus{RowVersion: 1, LastUpdateDate: now},
			RowTypeTag: rowtabletest.WidgetRowType,
			Payload:    rowtabletest.WidgetV1{Name: "w", Count: i},
		}
		entries[i] = rowtable.InsertMonomorphicEntry(rows[i])
	}

	result, err := rowtable.BulkWriteMonomorphic(ctx, tbl, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestBulkWriteMonomorphic_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	client := rowtabletest.NewFakeClient()
	tbl := rowtable.NewTable(client, "widgets", rowtabletest.KeySchema)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := rowtable.Row[rowtabletest.WidgetV1]{
		Key:        rowtable.Key{PartitionKey: "P", SortKey: "S"},
		CreateDate: now,
		Status:     rowtable.RowStatus{RowVersion: 1, LastUpdateDate: now},
		RowTypeTag: rowtabletest.WidgetRowType,
		Payload:    rowtabletest.WidgetV1{Name: "w", Count: 1},
	}
	require.NoError(t, rowtable.Insert(ctx, tbl, existing))

	updated := existing
	updated.Status.RowVersion = 2
	updated.Payload.Count = 2

	other := rowtable.Row[rowtabletest.WidgetV1]{
		Key:        rowtable.Key{PartitionKey: "P", SortKey: "T"},
		CreateDate: now,
		Status:     rowtable.RowStatus{RowVersion: 1, LastUpdateDate: now},
		RowTypeTag: rowtabletest.WidgetRowType,
		Payload:    rowtabletest.WidgetV1{Name: "other", Count: 0},
	}
	require.NoError(t, rowtable.Insert(ctx, tbl, other))

	entries := []rowtable.MonomorphicWriteEntry[rowtabletest.WidgetV1]{
		rowtable.UpdateMonomorphicEntry(updated, existing),
		rowtable.DeleteMonomorphicEntry(other),
	}
	result, err := rowtable.BulkWriteMonomorphic(ctx, tbl, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
}

func strPtr(s string) *string { return &s }
