package rowtable

import (
	"fmt"
	"sort"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Kind discriminates the tagged union AttrValue represents. Only the first
// six kinds are understood by the diff engine and statement renderer; the
// remainder exist so a stored attribute can still be read back and reported
// on without the package losing information about what it could not handle.
type Kind int

const (
	KindNull Kind = iota
	KindS
	KindN
	KindBool
	KindL
	KindM
	KindB
	KindSS
	KindNS
	KindBS
	KindUnknown
)

// AttrValue is a stored attribute value. Str carries the payload for both S
// and N (DynamoDB numbers are themselves decimal strings on the wire), B
// carries the boolean for KindBool, List and Map carry the recursive cases.
type AttrValue struct {
	Kind Kind
	Str  string
	B    bool
	List []AttrValue
	Map  map[string]AttrValue
}

func S(v string) AttrValue                 { return AttrValue{Kind: KindS, Str: v} }
func N(v string) AttrValue                 { return AttrValue{Kind: KindN, Str: v} }
func Bool(v bool) AttrValue                { return AttrValue{Kind: KindBool, B: v} }
func Null() AttrValue                      { return AttrValue{Kind: KindNull} }
func L(vs ...AttrValue) AttrValue          { return AttrValue{Kind: KindL, List: vs} }
func M(m map[string]AttrValue) AttrValue   { return AttrValue{Kind: KindM, Map: m} }

func (v AttrValue) typeName() string {
	switch v.Kind {
	case KindB:
		return "Binary"
	case KindBS:
		return "BinarySet"
	case KindNS:
		return "NumberSet"
	case KindSS:
		return "StringSet"
	default:
		return "Unknown"
	}
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// render renders a full attribute value literal per the value-rendering
// table: strings are single-quoted with embedded quotes doubled, numbers
// render as their raw digits, bools as true/false, lists and maps
// recursively, map keys sorted for determinism. B/BS/NS/SS/Unknown are
// outside this layer's diff/update path and fail with UnableToUpdateError.
func render(v AttrValue) (string, error) {
	switch v.Kind {
	case KindS:
		return "'" + escapeString(v.Str) + "'", nil
	case KindN:
		return v.Str, nil
	case KindBool:
		if v.B {
			return "true", nil
		}
		return "false", nil
	case KindNull:
		return "", nil
	case KindL:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			r, err := render(e)
			if err != nil {
				return "", err
			}
			parts[i] = r
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case KindM:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			// null → omitted: a null-valued map key renders to absent from
			// the flattened map rather than a dangling empty literal.
			if v.Map[k].Kind == KindNull {
				continue
			}
			r, err := render(v.Map[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, "'"+escapeString(k)+"': "+r)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", &UnableToUpdateError{Reason: fmt.Sprintf("Unable to handle %s types.", v.typeName())}
	}
}

func fromDDB(av ddbtypes.AttributeValue) AttrValue {
	switch t := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return S(t.Value)
	case *ddbtypes.AttributeValueMemberN:
		return N(t.Value)
	case *ddbtypes.AttributeValueMemberBOOL:
		return Bool(t.Value)
	case *ddbtypes.AttributeValueMemberNULL:
		return Null()
	case *ddbtypes.AttributeValueMemberL:
		list := make([]AttrValue, len(t.Value))
		for i, e := range t.Value {
			list[i] = fromDDB(e)
		}
		return AttrValue{Kind: KindL, List: list}
	case *ddbtypes.AttributeValueMemberM:
		m := make(map[string]AttrValue, len(t.Value))
		for k, e := range t.Value {
			m[k] = fromDDB(e)
		}
		return AttrValue{Kind: KindM, Map: m}
	case *ddbtypes.AttributeValueMemberB:
		return AttrValue{Kind: KindB}
	case *ddbtypes.AttributeValueMemberBS:
		return AttrValue{Kind: KindBS}
	case *ddbtypes.AttributeValueMemberNS:
		return AttrValue{Kind: KindNS}
	case *ddbtypes.AttributeValueMemberSS:
		return AttrValue{Kind: KindSS}
	default:
		return AttrValue{Kind: KindUnknown}
	}
}

func toDDB(v AttrValue) (ddbtypes.AttributeValue, error) {
	switch v.Kind {
	case KindS:
		return &ddbtypes.AttributeValueMemberS{Value: v.Str}, nil
	case KindN:
		return &ddbtypes.AttributeValueMemberN{Value: v.Str}, nil
	case KindBool:
		return &ddbtypes.AttributeValueMemberBOOL{Value: v.B}, nil
	case KindNull:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}, nil
	case KindL:
		list := make([]ddbtypes.AttributeValue, len(v.List))
		for i, e := range v.List {
			dv, err := toDDB(e)
			if err != nil {
				return nil, err
			}
			list[i] = dv
		}
		return &ddbtypes.AttributeValueMemberL{Value: list}, nil
	case KindM:
		m := make(map[string]ddbtypes.AttributeValue, len(v.Map))
		for k, e := range v.Map {
			dv, err := toDDB(e)
			if err != nil {
				return nil, err
			}
			m[k] = dv
		}
		return &ddbtypes.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, &UnableToUpdateError{Reason: fmt.Sprintf("Unable to handle %s types.", v.typeName())}
	}
}

func mapFromDDB(item map[string]ddbtypes.AttributeValue) map[string]AttrValue {
	m := make(map[string]AttrValue, len(item))
	for k, v := range item {
		m[k] = fromDDB(v)
	}
	return m
}

func mapToDDB(m map[string]AttrValue) (map[string]ddbtypes.AttributeValue, error) {
	out := make(map[string]ddbtypes.AttributeValue, len(m))
	for k, v := range m {
		dv, err := toDDB(v)
		if err != nil {
			return nil, err
		}
		out[k] = dv
	}
	return out, nil
}
