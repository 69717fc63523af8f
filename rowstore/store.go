// Package rowstore is a single-writer-serialized in-memory simulation of
// the wide-column backend rowtable.Table talks to in production. It exists
// to validate rowtable's conditional-check, query and bulk-write semantics
// without a real backend, the same role dynamodb/ddbstore plays for the
// teacher's own ddbsdk facade.
package rowstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/kavasystems/rowtable"
)

// Options configures a Store. The zero value opens BadgerDB in in-memory
// mode, matching dynamodb/ddbstore's own default when no Path is given.
type Options struct {
	// Path to the database directory. Empty means in-memory.
	Path string
	// Logger for BadgerDB diagnostics. Nil disables logging.
	Logger badger.Logger
}

// StoredRow is one occupied (partitionKey, sortKey) slot: the flattened
// attribute map plus the row-type tag needed for polymorphic reads.
type StoredRow struct {
	Item       map[string]rowtable.AttrValue
	RowTypeTag string
}

type command struct {
	fn   func() (any, error)
	resp chan result
}

type result struct {
	value any
	err   error
}

// Store is the reference store. All mutating and reading operations are
// routed through a single-consumer goroutine fed by cmds, so concurrent
// callers observe a total order consistent with arrival. No operation
// reads or writes the BadgerDB handle; serialization comes from the
// single-consumer goroutine alone.
type Store struct {
	db     *badger.DB
	cmds   chan command
	closed chan struct{}

	// partitions is the map<partitionKey, map<sortKey, StoredRow>> holding
	// every row, owned by the single-writer goroutine. Rows are never written
	// to badger, so nothing persists past Close even when Options.Path is set.
	partitions map[string]map[string]StoredRow
}

// New opens a Store. Closing the returned Store stops its writer goroutine
// and closes the underlying BadgerDB handle.
func New(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:         db,
		cmds:       make(chan command),
		closed:     make(chan struct{}),
		partitions: make(map[string]map[string]StoredRow),
	}
	go s.run()
	return s, nil
}

func (s *Store) run() {
	defer close(s.closed)
	for cmd := range s.cmds {
		v, err := cmd.fn()
		cmd.resp <- result{value: v, err: err}
	}
}

// Close stops accepting new operations and closes the backing BadgerDB
// handle once in-flight operations drain.
func (s *Store) Close() error {
	close(s.cmds)
	<-s.closed
	return s.db.Close()
}

// submit enqueues fn as a critical section on the single-writer goroutine
// and blocks until it completes or ctx is cancelled.
func (s *Store) submit(ctx context.Context, fn func() (any, error)) (any, error) {
	cmd := command{fn: fn, resp: make(chan result, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-cmd.resp:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func cloneItem(item map[string]rowtable.AttrValue) map[string]rowtable.AttrValue {
	out := make(map[string]rowtable.AttrValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// Insert fails with *rowtable.ConditionalCheckFailedError{Message: "Row
// already exists."} if the slot is occupied.
func (s *Store) Insert(ctx context.Context, partitionKey, sortKey string, row StoredRow) error {
	_, err := s.submit(ctx, func() (any, error) {
		slot := s.partitions[partitionKey]
		if slot != nil {
			if _, exists := slot[sortKey]; exists {
				return nil, &rowtable.ConditionalCheckFailedError{
					PartitionKey: partitionKey,
					SortKey:      sortKey,
					Message:      "Row already exists.",
				}
			}
		} else {
			slot = make(map[string]StoredRow)
			s.partitions[partitionKey] = slot
		}
		slot[sortKey] = StoredRow{Item: cloneItem(row.Item), RowTypeTag: row.RowTypeTag}
		return nil, nil
	})
	return err
}

// Update fails with "Existing item does not exist." if the slot is empty,
// or "Trying to overwrite incorrect version." if the stored rowVersion or
// createDate does not match expectedVersion/expectedCreateDate.
func (s *Store) Update(ctx context.Context, partitionKey, sortKey string, row StoredRow, expectedVersion uint64, expectedCreateDate string) error {
	_, err := s.submit(ctx, func() (any, error) {
		slot := s.partitions[partitionKey]
		existing, exists := slotGet(slot, sortKey)
		if !exists {
			return nil, &rowtable.ConditionalCheckFailedError{
				PartitionKey: partitionKey,
				SortKey:      sortKey,
				Message:      "Existing item does not exist.",
			}
		}
		if !versionMatches(existing, expectedVersion, expectedCreateDate) {
			return nil, &rowtable.ConditionalCheckFailedError{
				PartitionKey: partitionKey,
				SortKey:      sortKey,
				Message:      "Trying to overwrite incorrect version.",
			}
		}
		slot[sortKey] = StoredRow{Item: cloneItem(row.Item), RowTypeTag: row.RowTypeTag}
		return nil, nil
	})
	return err
}

// DeleteAtKey always succeeds, whether or not the slot was occupied.
func (s *Store) DeleteAtKey(ctx context.Context, partitionKey, sortKey string) error {
	_, err := s.submit(ctx, func() (any, error) {
		if slot := s.partitions[partitionKey]; slot != nil {
			delete(slot, sortKey)
		}
		return nil, nil
	})
	return err
}

// DeleteItem mirrors Update's version-gate, with message "Trying to delete
// incorrect version." on mismatch, and "Existing item does not exist." if
// the slot is already empty.
func (s *Store) DeleteItem(ctx context.Context, partitionKey, sortKey string, expectedVersion uint64, expectedCreateDate string) error {
	_, err := s.submit(ctx, func() (any, error) {
		slot := s.partitions[partitionKey]
		existing, exists := slotGet(slot, sortKey)
		if !exists {
			return nil, &rowtable.ConditionalCheckFailedError{
				PartitionKey: partitionKey,
				SortKey:      sortKey,
				Message:      "Existing item does not exist.",
			}
		}
		if !versionMatches(existing, expectedVersion, expectedCreateDate) {
			return nil, &rowtable.ConditionalCheckFailedError{
				PartitionKey: partitionKey,
				SortKey:      sortKey,
				Message:      "Trying to delete incorrect version.",
			}
		}
		delete(slot, sortKey)
		return nil, nil
	})
	return err
}

// Get returns (row, false, nil) when the partition or slot is missing.
func (s *Store) Get(ctx context.Context, partitionKey, sortKey string) (StoredRow, bool, error) {
	v, err := s.submit(ctx, func() (any, error) {
		row, exists := slotGet(s.partitions[partitionKey], sortKey)
		return storedRowOrZero{row: row, exists: exists}, nil
	})
	if err != nil {
		return StoredRow{}, false, err
	}
	r := v.(storedRowOrZero)
	return r.row, r.exists, nil
}

type storedRowOrZero struct {
	row    StoredRow
	exists bool
}

func slotGet(slot map[string]StoredRow, sortKey string) (StoredRow, bool) {
	if slot == nil {
		return StoredRow{}, false
	}
	row, ok := slot[sortKey]
	return row, ok
}

func versionMatches(existing StoredRow, expectedVersion uint64, expectedCreateDate string) bool {
	rv, ok := existing.Item[rowtable.RowVersionAttr]
	if !ok || rv.Kind != rowtable.KindN {
		return false
	}
	cd, ok := existing.Item[rowtable.CreateDateAttr]
	if !ok || cd.Kind != rowtable.KindS {
		return false
	}
	storedVersion, err := strconv.ParseUint(rv.Str, 10, 64)
	if err != nil {
		return false
	}
	return storedVersion == expectedVersion && cd.Str == expectedCreateDate
}

// QueryResult is one page of Query: the surviving rows in the requested
// scan order, and a nextToken for the following page (nil when exhausted).
type QueryResult struct {
	Rows      []StoredRow
	NextToken *string
}

// Query mirrors §4.6's reference semantics: sort by sortKey ascending,
// filter by cond if supplied, reverse if scanForward is false, then apply
// the decimal-integer paging window.
func (s *Store) Query(ctx context.Context, partitionKey string, cond *rowtable.SortKeyCondition, limit int, scanForward bool, startToken *string) (*QueryResult, error) {
	startIndex := 0
	if startToken != nil {
		n, err := strconv.Atoi(*startToken)
		if err != nil {
			panic(fmt.Sprintf("rowstore: malformed page token %q: %v", *startToken, err))
		}
		startIndex = n
	}

	v, err := s.submit(ctx, func() (any, error) {
		slot := s.partitions[partitionKey]
		if slot == nil {
			return &QueryResult{}, nil
		}

		sortKeys := make([]string, 0, len(slot))
		for sk := range slot {
			if cond == nil || cond.Matches(sk) {
				sortKeys = append(sortKeys, sk)
			}
		}
		sort.Strings(sortKeys)
		if !scanForward {
			for i, j := 0, len(sortKeys)-1; i < j; i, j = i+1, j-1 {
				sortKeys[i], sortKeys[j] = sortKeys[j], sortKeys[i]
			}
		}

		endIndex := len(sortKeys)
		if limit > 0 && startIndex+limit < endIndex {
			endIndex = startIndex + limit
		}
		if startIndex > len(sortKeys) {
			startIndex = len(sortKeys)
		}

		rows := make([]StoredRow, 0, endIndex-startIndex)
		for _, sk := range sortKeys[startIndex:endIndex] {
			rows = append(rows, slot[sk])
		}

		var nextToken *string
		if endIndex < len(sortKeys) {
			token := strconv.Itoa(endIndex)
			nextToken = &token
		}
		return &QueryResult{Rows: rows, NextToken: nextToken}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*QueryResult), nil
}
