package rowtable

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// Reserved attribute names. A stored row's attribute map always carries
// these plus the two key attributes plus the payload's own flattened
// attributes; payload types must not declare fields that marshal to any
// of these names.
const (
	RowVersionAttr     = "rowVersion"
	CreateDateAttr     = "createDate"
	LastUpdateDateAttr = "lastUpdateDate"
	RowTypeAttr        = "rowType"
)

// KeySchema names the two key attributes for a table. Callers own this —
// it is not guessed from a struct tag, matching how table.PrimaryKeyDefinition
// is supplied explicitly in the corpus this package is grounded on.
type KeySchema struct {
	PartitionKeyAttr string
	SortKeyAttr      string
}

// Key is a row's composite primary key.
type Key struct {
	PartitionKey string
	SortKey      string
}

// RowStatus carries the optimistic-concurrency metadata: a version that
// starts at 1 and increases by exactly one per successful update, and the
// instant of the update that produced the current version.
type RowStatus struct {
	RowVersion     uint64
	LastUpdateDate time.Time
}

// Row is the typed envelope every table operation reads or writes.
type Row[P any] struct {
	Key        Key
	CreateDate time.Time
	Status     RowStatus
	RowTypeTag string
	Payload    P
}

const instantLayout = "2006-01-02T15:04:05.000Z"

// FormatInstant renders an instant as ISO-8601 UTC with millisecond
// fractional seconds, the wire format createDate/lastUpdateDate use.
func FormatInstant(t time.Time) string { return t.UTC().Format(instantLayout) }

// ParseInstant reverses FormatInstant.
func ParseInstant(s string) (time.Time, error) { return time.Parse(instantLayout, s) }

func formatInstant(t time.Time) string { return FormatInstant(t) }

func parseInstant(s string) (time.Time, error) { return ParseInstant(s) }

func reservedAttrs(schema KeySchema) []string {
	return []string{RowVersionAttr, CreateDateAttr, LastUpdateDateAttr, RowTypeAttr, schema.PartitionKeyAttr, schema.SortKeyAttr}
}

// encodeRow flattens a row into its stored attribute map: the payload's own
// marshaled attributes with the key and metadata attributes merged in at
// the top level, overriding anything the payload happened to produce under
// those reserved names.
func encodeRow[P any](schema KeySchema, row Row[P]) (map[string]AttrValue, error) {
	payloadAV, err := attributevalue.MarshalMap(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	out := mapFromDDB(payloadAV)
	for _, reserved := range reservedAttrs(schema) {
		delete(out, reserved)
	}
	out[schema.PartitionKeyAttr] = S(row.Key.PartitionKey)
	out[schema.SortKeyAttr] = S(row.Key.SortKey)
	out[RowVersionAttr] = N(fmt.Sprintf("%d", row.Status.RowVersion))
	out[CreateDateAttr] = S(formatInstant(row.CreateDate))
	out[LastUpdateDateAttr] = S(formatInstant(row.Status.LastUpdateDate))
	out[RowTypeAttr] = S(row.RowTypeTag)
	return out, nil
}

// DecodeRow reverses encodeRow for callers operating directly on a stored
// attribute map outside the Client/dynamodb-shaped request path — notably
// rowstore's Store, which never produces a dynamodb wire response.
func DecodeRow[P any](schema KeySchema, stored map[string]AttrValue) (Row[P], error) {
	return decodeRow[P](schema, stored)
}

// EncodeRow flattens row the same way Insert/Clobber/Update do, for callers
// that need the raw attribute map without issuing a request — again, the
// reference store's write path.
func EncodeRow[P any](schema KeySchema, row Row[P]) (map[string]AttrValue, error) {
	return encodeRow(schema, row)
}

// decodeRow reverses encodeRow. It fails with UnexpectedResponseError, not a
// panic, on any reserved attribute that is missing or of the wrong kind —
// that case means backend/version skew, not a programmer error.
func decodeRow[P any](schema KeySchema, stored map[string]AttrValue) (Row[P], error) {
	var row Row[P]

	pk, ok := stored[schema.PartitionKeyAttr]
	if !ok || pk.Kind != KindS {
		return row, &UnexpectedResponseError{Reason: "missing or malformed partition key"}
	}
	sk, ok := stored[schema.SortKeyAttr]
	if !ok || sk.Kind != KindS {
		return row, &UnexpectedResponseError{Reason: "missing or malformed sort key"}
	}
	rv, ok := stored[RowVersionAttr]
	if !ok || rv.Kind != KindN {
		return row, &UnexpectedResponseError{Reason: "missing or malformed rowVersion"}
	}
	cd, ok := stored[CreateDateAttr]
	if !ok || cd.Kind != KindS {
		return row, &UnexpectedResponseError{Reason: "missing or malformed createDate"}
	}
	lud, ok := stored[LastUpdateDateAttr]
	if !ok || lud.Kind != KindS {
		return row, &UnexpectedResponseError{Reason: "missing or malformed lastUpdateDate"}
	}
	tag, ok := stored[RowTypeAttr]
	if !ok || tag.Kind != KindS {
		return row, &UnexpectedResponseError{Reason: "missing or malformed rowType"}
	}

	payloadMap := make(map[string]AttrValue, len(stored))
	for k, v := range stored {
		payloadMap[k] = v
	}
	for _, reserved := range reservedAttrs(schema) {
		delete(payloadMap, reserved)
	}
	payloadDDB, err := mapToDDB(payloadMap)
	if err != nil {
		return row, err
	}
	var payload P
	if err := attributevalue.UnmarshalMap(payloadDDB, &payload); err != nil {
		return row, &UnexpectedResponseError{Reason: fmt.Sprintf("decode payload: %v", err)}
	}

	createDate, err := parseInstant(cd.Str)
	if err != nil {
		return row, &UnexpectedResponseError{Reason: fmt.Sprintf("malformed createDate: %v", err)}
	}
	lastUpdate, err := parseInstant(lud.Str)
	if err != nil {
		return row, &UnexpectedResponseError{Reason: fmt.Sprintf("malformed lastUpdateDate: %v", err)}
	}
	var rowVersion uint64
	if _, err := fmt.Sscanf(rv.Str, "%d", &rowVersion); err != nil {
		return row, &UnexpectedResponseError{Reason: fmt.Sprintf("malformed rowVersion: %v", err)}
	}

	row.Key = Key{PartitionKey: pk.Str, SortKey: sk.Str}
	row.CreateDate = createDate
	row.Status = RowStatus{RowVersion: rowVersion, LastUpdateDate: lastUpdate}
	row.RowTypeTag = tag.Str
	row.Payload = payload
	return row, nil
}
