package model

// Operator compares a changed-field value against a filter value.
type Operator string

const (
	OperatorEqual    Operator = "equal"
	OperatorNotEqual Operator = "notEqual"
)

type FilterConditions []FilterCondition

// FilterCondition is a single field/value condition evaluated against the
// changed-fields set of an update event.
type FilterCondition struct {
	Field string   `json:"field" yaml:"field"`
	Op    Operator `json:"op" yaml:"op"`
	Value string   `json:"value" yaml:"value"`
}
