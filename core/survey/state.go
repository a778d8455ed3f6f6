package survey

import (
	"fmt"
	"strconv"
)

// Property keys used on the remote user-profile record. The flat map is
// owned by the chat platform; this is the only file that touches it.
const (
	propActive     = "surveyActive"
	propIndex      = "surveyIndex"
	propAnswerStem = "surveyResponse"
)

// UserState is the explicit form of a user's survey progress. Index is
// the next unanswered question; it equals the survey length exactly when
// all questions are answered and finalization is pending.
type UserState struct {
	Active  bool
	Index   int
	Answers []string
}

// AnswerKey returns the profile property key for answer i.
func AnswerKey(i int) string {
	return propAnswerStem + strconv.Itoa(i)
}

// StateFromProperties deserializes survey state from the profile
// record's flat key-value map. JSON decoding renders numbers as float64
// and older records may carry stringly-typed values, so both are
// accepted. On an active record an unparsable index is an error and a
// missing one reads as 0; an inactive record is never advanced, so its
// index is not examined at all and cannot fail the request.
func StateFromProperties(props map[string]any) (UserState, error) {
	var st UserState
	if props == nil {
		return st, nil
	}

	st.Active = truthy(props[propActive])
	if !st.Active {
		return st, nil
	}

	if raw, ok := props[propIndex]; ok {
		idx, err := asInt(raw)
		if err != nil {
			return UserState{}, fmt.Errorf("survey: bad %s value %v: %w", propIndex, raw, err)
		}
		if idx < 0 {
			return UserState{}, fmt.Errorf("survey: negative %s value %d", propIndex, idx)
		}
		st.Index = idx
	}

	st.Answers = make([]string, 0, st.Index)
	for i := 0; i < st.Index; i++ {
		raw, ok := props[AnswerKey(i)]
		if !ok {
			st.Answers = append(st.Answers, "")
			continue
		}
		st.Answers = append(st.Answers, asString(raw))
	}
	return st, nil
}

// MergeInto serializes the state onto the profile property map without
// discarding unrelated keys. A nil map is allocated for convenience.
func (st UserState) MergeInto(props map[string]any) map[string]any {
	if props == nil {
		props = make(map[string]any, len(st.Answers)+2)
	}
	props[propActive] = st.Active
	props[propIndex] = st.Index
	for i, a := range st.Answers {
		props[AnswerKey(i)] = a
	}
	return props
}

// truthy applies loose boolean semantics to the property bag: absent,
// false, zero, and empty string all read as inactive.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return true
	}
}

func asInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
