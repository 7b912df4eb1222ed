package watch

import (
	"fmt"
	"strings"

	"github.com/codetrek/mongotrigger/pkg/model"
)

// Operation identifies a change stream operation type.
type Operation string

const (
	OpInsert  Operation = "insert"
	OpUpdate  Operation = "update"
	OpReplace Operation = "replace"
	OpDelete  Operation = "delete"
	OpDrop    Operation = "drop"
	OpRename  Operation = "rename"
)

// AllOperations is every operation type a watch can subscribe to.
var AllOperations = []Operation{OpInsert, OpUpdate, OpReplace, OpDelete, OpDrop, OpRename}

// KnownOperation reports whether op is one of the supported operation types.
func KnownOperation(op Operation) bool {
	for _, known := range AllOperations {
		if op == known {
			return true
		}
	}
	return false
}

// MonitorAllFields is the wildcard token selecting every field of the
// collection for update monitoring.
const MonitorAllFields = "*"

// Config describes one collection watch.
type Config struct {
	ID         string `json:"watchId" yaml:"watchId"`
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`

	// MonitoredFields is either the wildcard ["*"] or a list of field names;
	// update events that touch none of the named fields are filtered out
	// server-side.
	MonitoredFields []string `json:"monitoredFields" yaml:"monitoredFields"`

	// Operations is the set of operation types the watch subscribes to.
	Operations []Operation `json:"operations" yaml:"operations"`

	// Filters are evaluated client-side against the changed-fields set of
	// update events, in order, combined with AND.
	Filters model.FilterConditions `json:"filters" yaml:"filters"`

	// FullDocumentOnUpdate asks the server to attach the post-update document
	// to update events (updateLookup).
	FullDocumentOnUpdate bool `json:"fullDocumentOnUpdate" yaml:"fullDocumentOnUpdate"`
}

// Validate checks the configuration and normalizes the monitored-fields list
// (trimming whitespace and dropping empty names).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: database name is required", model.ErrConfig)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection name is required", model.ErrConfig)
	}
	if len(c.Operations) == 0 {
		return fmt.Errorf("%w: at least one operation type must be selected", model.ErrConfig)
	}
	for _, op := range c.Operations {
		if !KnownOperation(op) {
			return fmt.Errorf("%w: unknown operation type %q", model.ErrConfig, op)
		}
	}

	fields := make([]string, 0, len(c.MonitoredFields))
	for _, f := range c.MonitoredFields {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: monitored fields must name at least one field or be %q", model.ErrConfig, MonitorAllFields)
	}
	c.MonitoredFields = fields

	for _, f := range c.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: filter condition is missing a field name", model.ErrConfig)
		}
		if f.Op != model.OperatorEqual && f.Op != model.OperatorNotEqual {
			return fmt.Errorf("%w: unknown filter operator %q", model.ErrConfig, f.Op)
		}
	}
	return nil
}

// MonitorsAllFields reports whether the wildcard is selected.
func (c *Config) MonitorsAllFields() bool {
	for _, f := range c.MonitoredFields {
		if f == MonitorAllFields {
			return true
		}
	}
	return false
}

// HasOperation reports whether op is among the subscribed operation types.
func (c *Config) HasOperation(op Operation) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}
