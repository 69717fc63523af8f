package rowtable

import "fmt"

// ConditionalCheckFailedError is returned when insert/update/deleteItem's
// precondition is not met by the backend or the reference store: the row
// already existed, or the caller's (rowVersion, createDate) no longer
// matches what is stored.
type ConditionalCheckFailedError struct {
	PartitionKey string
	SortKey      string
	Message      string
}

func (e *ConditionalCheckFailedError) Error() string {
	return fmt.Sprintf("conditional check failed for %s/%s: %s", e.PartitionKey, e.SortKey, e.Message)
}

// UnexpectedResponseError means the backend returned a shape this layer
// cannot decode: a missing top-level item, a malformed reserved attribute.
type UnexpectedResponseError struct {
	Reason string
}

func (e *UnexpectedResponseError) Error() string {
	return "unexpected response: " + e.Reason
}

// UnexpectedTypeError is returned by the polymorphic read dispatcher when a
// stored row's rowType has no registered Provider.
type UnexpectedTypeError struct {
	Provided string
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("unexpected type: %s", e.Provided)
}

// UnableToUpdateError is returned by the diff engine and statement renderer
// when an attribute value uses a type outside the supported six (B, BS, NS,
// SS and unrecognized wire shapes).
type UnableToUpdateError struct {
	Reason string
}

func (e *UnableToUpdateError) Error() string {
	return "unable to update: " + e.Reason
}

// BatchErrorsReturnedError is the bulk-write coordinator's aggregated
// failure: at least one statement in the batch came back with an error.
type BatchErrorsReturnedError struct {
	ErrorCount    int
	MessageCounts map[string]int
}

func (e *BatchErrorsReturnedError) Error() string {
	return fmt.Sprintf("batch write returned %d error(s) across %d distinct message(s)", e.ErrorCount, len(e.MessageCounts))
}
