package rowstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavasystems/rowtable"
	"github.com/kavasystems/rowtable/rowstore"
	"github.com/kavasystems/rowtable/rowtabletest"
)

func newTestStore(t *testing.T) *rowstore.Store {
	t.Helper()
	s, err := rowstore.New(rowstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func widgetRow(pk, sk string, version uint64, payload rowtabletest.WidgetV1) rowtable.Row[rowtabletest.WidgetV1] {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return rowtable.Row[rowtabletest.WidgetV1]{
		Key:        rowtable.Key{PartitionKey: pk, SortKey: sk},
		CreateDate: now,
		Status:     rowtable.RowStatus{RowVersion: version, LastUpdateDate: now},
		RowTypeTag: rowtabletest.WidgetRowType,
		Payload:    payload,
	}
}

func TestStore_InsertUpdateVersionGate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	row := widgetRow("P", "S", 1, rowtabletest.WidgetV1{Name: "a", Count: 1})
	require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))

	got, err := rowstore.Get(ctx, s, rowtabletest.KeySchema, row.Key, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row.Payload, got.Payload)
	assert.Equal(t, uint64(1), got.Status.RowVersion)

	updated := widgetRow("P", "S", 2, rowtabletest.WidgetV1{Name: "a", Count: 2})
	require.NoError(t, rowstore.Update(ctx, s, rowtabletest.KeySchema, updated, row))

	got, err = rowstore.Get(ctx, s, rowtabletest.KeySchema, row.Key, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	assert.Equal(t, updated.Payload, got.Payload)

	stale := widgetRow("P", "S", 3, rowtabletest.WidgetV1{Name: "a", Count: 3})
	err = rowstore.Update(ctx, s, rowtabletest.KeySchema, stale, row)
	require.Error(t, err)

	var ccf *rowtable.ConditionalCheckFailedError
	require.ErrorAs(t, err, &ccf)
	assert.Equal(t, "Trying to overwrite incorrect version.", ccf.Message)
}

func TestStore_InsertFailsWhenOccupied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	row := widgetRow("P", "S", 1, rowtabletest.WidgetV1{Name: "a", Count: 1})
	require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))

	err := rowstore.Insert(ctx, s, rowtabletest.KeySchema, row)
	require.Error(t, err)

	var ccf *rowtable.ConditionalCheckFailedError
	require.ErrorAs(t, err, &ccf)
	assert.Equal(t, "Row already exists.", ccf.Message)
}

func TestStore_DeleteAtKeyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := rowtable.Key{PartitionKey: "P", SortKey: "S"}
	require.NoError(t, s.DeleteAtKey(ctx, key.PartitionKey, key.SortKey))
	require.NoError(t, s.DeleteAtKey(ctx, key.PartitionKey, key.SortKey))

	row := widgetRow("P", "S", 1, rowtabletest.WidgetV1{Name: "a", Count: 1})
	require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))
	require.NoError(t, s.DeleteAtKey(ctx, key.PartitionKey, key.SortKey))
	require.NoError(t, s.DeleteAtKey(ctx, key.PartitionKey, key.SortKey))

	got, err := rowstore.Get(ctx, s, rowtabletest.KeySchema, key, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_QueryBeginsWithOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, sk := range []string{"profile#2", "order#1", "profile#1", "order#2"} {
		row := widgetRow("P", sk, 1, rowtabletest.WidgetV1{Name: sk, Count: 0})
		require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))
	}

	cond := rowtable.BeginsWith("profile#")

	ascending, _, err := rowstore.Query(ctx, s, rowtabletest.KeySchema, "P", &cond, 0, true, nil, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	require.Len(t, ascending, 2)
	assert.Equal(t, "profile#1", ascending[0].Key.SortKey)
	assert.Equal(t, "profile#2", ascending[1].Key.SortKey)

	descending, _, err := rowstore.Query(ctx, s, rowtabletest.KeySchema, "P", &cond, 0, false, nil, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	require.Len(t, descending, 2)
	assert.Equal(t, "profile#2", descending[0].Key.SortKey)
	assert.Equal(t, "profile#1", descending[1].Key.SortKey)
}

func TestStore_QueryPaginationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 10; i++ {
		sk := fmt.Sprintf("%02d", i)
		row := widgetRow("P", sk, 1, rowtabletest.WidgetV1{Name: sk, Count: i})
		require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))
	}

	var (
		collected []string
		token     *string
	)
	for {
		rows, next, err := rowstore.Query(ctx, s, rowtabletest.KeySchema, "P", nil, 3, true, token, rowtabletest.WidgetRegistry())
		require.NoError(t, err)
		for _, r := range rows {
			collected = append(collected, r.Key.SortKey)
		}
		if next == nil {
			break
		}
		token = next
	}

	expected := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10"}
	assert.Equal(t, expected, collected)
}

func TestStore_QueryPaginationTokenSequence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 10; i++ {
		sk := fmt.Sprintf("%02d", i)
		row := widgetRow("P", sk, 1, rowtabletest.WidgetV1{Name: sk, Count: i})
		require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))
	}

	rows, next, err := rowstore.Query(ctx, s, rowtabletest.KeySchema, "P", nil, 3, true, nil, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03"}, sortKeys(rows))
	require.NotNil(t, next)
	assert.Equal(t, "3", *next)

	rows, next, err = rowstore.Query(ctx, s, rowtabletest.KeySchema, "P", nil, 3, true, next, rowtabletest.WidgetRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"04", "05", "06"}, sortKeys(rows))
	require.NotNil(t, next)
	assert.Equal(t, "6", *next)
}

func sortKeys(rows []rowtable.Row[rowtabletest.WidgetV1]) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key.SortKey
	}
	return out
}

func TestStore_PolymorphicReadFailsOnUnregisteredType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	row := rowtable.Row[rowtabletest.GadgetV1]{
		Key:        rowtable.Key{PartitionKey: "P", SortKey: "S"},
		CreateDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:     rowtable.RowStatus{RowVersion: 1, LastUpdateDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		RowTypeTag: rowtabletest.GadgetRowType,
		Payload:    rowtabletest.GadgetV1{Label: "thing"},
	}
	require.NoError(t, rowstore.Insert(ctx, s, rowtabletest.KeySchema, row))

	_, err := rowstore.Get(ctx, s, rowtabletest.KeySchema, row.Key, rowtabletest.WidgetRegistry())
	require.Error(t, err)

	var unexpected *rowtable.UnexpectedTypeError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, rowtabletest.GadgetRowType, unexpected.Provided)
}
