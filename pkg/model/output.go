package model

// Output is the normalized record emitted for one change event. The set of
// keys depends on the operation, so it is kept as a plain map rather than a
// struct with many conditionally-present fields: "operation", "timestamp",
// "database" and "collection" are always set, "documentId" when the event
// carries a primary key, and the remaining keys per operation (insert carries
// "document", update carries "modifiedFields"/"removedFields", and so on).
type Output map[string]interface{}

// Operation returns the operation type of the record.
func (o Output) Operation() string {
	s, _ := o["operation"].(string)
	return s
}

// Database returns the database the event originated from.
func (o Output) Database() string {
	s, _ := o["database"].(string)
	return s
}

// Collection returns the collection the event originated from.
func (o Output) Collection() string {
	s, _ := o["collection"].(string)
	return s
}
