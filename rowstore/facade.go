package rowstore

import (
	"context"

	"github.com/kavasystems/rowtable"
)

// Insert encodes row and inserts it, mirroring rowtable.Insert's contract.
func Insert[P any](ctx context.Context, s *Store, schema rowtable.KeySchema, row rowtable.Row[P]) error {
	item, err := rowtable.EncodeRow(schema, row)
	if err != nil {
		return err
	}
	return s.Insert(ctx, row.Key.PartitionKey, row.Key.SortKey, StoredRow{Item: item, RowTypeTag: row.RowTypeTag})
}

// Update encodes newRow and applies it, gated on existing's stored version
// and create date, mirroring rowtable.Update's contract.
func Update[P any](ctx context.Context, s *Store, schema rowtable.KeySchema, newRow, existing rowtable.Row[P]) error {
	item, err := rowtable.EncodeRow(schema, newRow)
	if err != nil {
		return err
	}
	return s.Update(ctx, newRow.Key.PartitionKey, newRow.Key.SortKey, StoredRow{Item: item, RowTypeTag: newRow.RowTypeTag}, existing.Status.RowVersion, rowtable.FormatInstant(existing.CreateDate))
}

// DeleteItem mirrors rowtable.DeleteItem's version-gated delete.
func DeleteItem[P any](ctx context.Context, s *Store, existing rowtable.Row[P]) error {
	return s.DeleteItem(ctx, existing.Key.PartitionKey, existing.Key.SortKey, existing.Status.RowVersion, rowtable.FormatInstant(existing.CreateDate))
}

// Get decodes the stored row at key via registry, or returns (nil, nil) if
// the slot is empty.
func Get[R any](ctx context.Context, s *Store, schema rowtable.KeySchema, key rowtable.Key, registry *rowtable.Registry[R]) (*rowtable.Row[R], error) {
	stored, exists, err := s.Get(ctx, key.PartitionKey, key.SortKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	row, err := rowtable.DecodeRow[R](schema, stored.Item)
	if err != nil {
		return nil, err
	}
	decoded, err := registry.Decode(stored.Item)
	if err != nil {
		return nil, err
	}
	row.Payload = decoded
	return &row, nil
}

// Query decodes one page of rows from partitionKey via registry.
func Query[R any](ctx context.Context, s *Store, schema rowtable.KeySchema, partitionKey string, cond *rowtable.SortKeyCondition, limit int, scanForward bool, startToken *string, registry *rowtable.Registry[R]) ([]rowtable.Row[R], *string, error) {
	res, err := s.Query(ctx, partitionKey, cond, limit, scanForward, startToken)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]rowtable.Row[R], 0, len(res.Rows))
	for _, stored := range res.Rows {
		row, err := rowtable.DecodeRow[R](schema, stored.Item)
		if err != nil {
			return nil, nil, err
		}
		decoded, err := registry.Decode(stored.Item)
		if err != nil {
			return nil, nil, err
		}
		row.Payload = decoded
		rows = append(rows, row)
	}
	return rows, res.NextToken, nil
}

// BulkWrite applies entries sequentially in input order; a failure midway
// leaves earlier successes applied, per §4.6's bulkWrite contract for the
// reference store.
func BulkWrite(ctx context.Context, s *Store, schema rowtable.KeySchema, entries []Entry) error {
	for _, e := range entries {
		if err := e.apply(ctx, s, schema); err != nil {
			return err
		}
	}
	return nil
}

// Entry is one bulkWrite entry against the reference store.
type Entry interface {
	apply(ctx context.Context, s *Store, schema rowtable.KeySchema) error
}

type insertEntry[P any] struct{ row rowtable.Row[P] }

func (e insertEntry[P]) apply(ctx context.Context, s *Store, schema rowtable.KeySchema) error {
	return Insert(ctx, s, schema, e.row)
}

// InsertEntry builds a bulkWrite entry that inserts row.
func InsertEntry[P any](row rowtable.Row[P]) Entry { return insertEntry[P]{row: row} }

type updateEntry[P any] struct{ newRow, existing rowtable.Row[P] }

func (e updateEntry[P]) apply(ctx context.Context, s *Store, schema rowtable.KeySchema) error {
	return Update(ctx, s, schema, e.newRow, e.existing)
}

// UpdateEntry builds a bulkWrite entry that applies newRow over existing.
func UpdateEntry[P any](newRow, existing rowtable.Row[P]) Entry {
	return updateEntry[P]{newRow: newRow, existing: existing}
}

type deleteAtKeyEntry struct{ key rowtable.Key }

func (e deleteAtKeyEntry) apply(ctx context.Context, s *Store, schema rowtable.KeySchema) error {
	return s.DeleteAtKey(ctx, e.key.PartitionKey, e.key.SortKey)
}

// DeleteAtKeyEntry builds a bulkWrite entry that unconditionally deletes key.
func DeleteAtKeyEntry(key rowtable.Key) Entry { return deleteAtKeyEntry{key: key} }

type deleteItemEntry[P any] struct{ existing rowtable.Row[P] }

func (e deleteItemEntry[P]) apply(ctx context.Context, s *Store, schema rowtable.KeySchema) error {
	return DeleteItem(ctx, s, e.existing)
}

// DeleteItemEntry builds a bulkWrite entry that deletes existing, gated on
// its stored version.
func DeleteItemEntry[P any](existing rowtable.Row[P]) Entry { return deleteItemEntry[P]{existing: existing} }
