package watch

import "github.com/codetrek/mongotrigger/pkg/model"

// MatchesFilters reports whether every condition holds against the
// changed-fields set of an update event. An empty condition list passes. A
// condition whose field is absent from the set fails regardless of operator.
//
// Comparison is strict string equality: a changed value that is not a string
// never satisfies Equal and always satisfies NotEqual. Filter values are
// configured as strings and no type coercion is attempted.
func MatchesFilters(conds model.FilterConditions, changed map[string]interface{}) bool {
	for _, cond := range conds {
		actual, present := changed[cond.Field]
		if !present {
			return false
		}
		s, isString := actual.(string)
		switch cond.Op {
		case model.OperatorEqual:
			if !isString || s != cond.Value {
				return false
			}
		case model.OperatorNotEqual:
			if isString && s == cond.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}
