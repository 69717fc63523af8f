package rowtabletest

import "github.com/kavasystems/rowtable"

// WidgetV1 and GadgetV1 are two unrelated payload shapes used across the
// root package's tests to exercise the polymorphic read dispatcher: a
// query over one partition can return a mix of both, discriminated by
// rowType tag.
type WidgetV1 struct {
	Name  string `dynamodbav:"name"`
	Count int    `dynamodbav:"count"`
}

type GadgetV1 struct {
	Label string `dynamodbav:"label"`
}

// AnyPayload is a closed union of the two fixture payload shapes, decoded
// from whichever one a stored row's rowType tag selects.
type AnyPayload struct {
	Widget *WidgetV1
	Gadget *GadgetV1
}

const (
	WidgetRowType = "Widget"
	GadgetRowType = "Gadget"
)

// NewAnyPayloadRegistry builds the registry tests use to decode a mixed
// partition into AnyPayload values.
func NewAnyPayloadRegistry() *rowtable.Registry[AnyPayload] {
	return rowtable.NewRegistry(
		rowtable.Provider[AnyPayload]{
			RowTypeTag: WidgetRowType,
			Decode: func(stored map[string]rowtable.AttrValue) (AnyPayload, error) {
				row, err := rowtable.DecodeRow[WidgetV1](KeySchema, stored)
				if err != nil {
					return AnyPayload{}, err
				}
				return AnyPayload{Widget: &row.Payload}, nil
			},
		},
		rowtable.Provider[AnyPayload]{
			RowTypeTag: GadgetRowType,
			Decode: func(stored map[string]rowtable.AttrValue) (AnyPayload, error) {
				row, err := rowtable.DecodeRow[GadgetV1](KeySchema, stored)
				if err != nil {
					return AnyPayload{}, err
				}
				return AnyPayload{Gadget: &row.Payload}, nil
			},
		},
	)
}

// KeySchema is the fixture key schema tests build tables/stores against.
var KeySchema = rowtable.KeySchema{PartitionKeyAttr: "PK", SortKeyAttr: "SK"}

// WidgetRegistry decodes only WidgetV1 rows, used to exercise
// UnexpectedTypeError when a partition also contains a Gadget row.
func WidgetRegistry() *rowtable.Registry[WidgetV1] {
	return rowtable.NewRegistry(rowtable.Provider[WidgetV1]{
		RowTypeTag: WidgetRowType,
		Decode: func(stored map[string]rowtable.AttrValue) (WidgetV1, error) {
			row, err := rowtable.DecodeRow[WidgetV1](KeySchema, stored)
			return row.Payload, err
		},
	})
}
