package patch

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind indicates an operation kind the applier does not know.
	ErrUnknownKind = errors.New("unknown patch operation")

	// ErrMissingValue indicates a replace or append without lines.
	ErrMissingValue = errors.New("patch operation has no value")
)

// Kind is the type of a line operation.
type Kind int

const (
	// Delete removes the line.
	Delete Kind = iota + 1
	// Replace overwrites lines starting at the line.
	Replace
	// Append inserts lines after the line.
	Append
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < Delete || k > Append {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "delete":
		*k = Delete
	case "replace":
		*k = Replace
	case "append":
		*k = Append
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, text)
	}
	return nil
}

// Operation is a single line-level edit. Line is 1-based; for Append, 0
// inserts above the first line. Value is nil for Delete.
type Operation struct {
	Kind  Kind     `json:"op"`
	Line  int      `json:"line"`
	Value []string `json:"val,omitempty"`
}

// String renders the operation for logs.
func (o Operation) String() string {
	if o.Kind == Delete {
		return fmt.Sprintf("%s %d", o.Kind, o.Line)
	}
	return fmt.Sprintf("%s %d %q", o.Kind, o.Line, o.Value)
}

// Validate checks the operation is well-formed. It does not check the line
// against a buffer.
func (o Operation) Validate() error {
	switch o.Kind {
	case Delete:
		if o.Line < 1 {
			return fmt.Errorf("delete line %d: must be >= 1", o.Line)
		}
	case Replace:
		if o.Line < 1 {
			return fmt.Errorf("replace line %d: must be >= 1", o.Line)
		}
		if len(o.Value) == 0 {
			return fmt.Errorf("replace line %d: %w", o.Line, ErrMissingValue)
		}
	case Append:
		if o.Line < 0 {
			return fmt.Errorf("append line %d: must be >= 0", o.Line)
		}
		if len(o.Value) == 0 {
			return fmt.Errorf("append line %d: %w", o.Line, ErrMissingValue)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(o.Kind))
	}
	return nil
}

// DocumentPatch is the set of operations the backend returned for one
// document. Document is a file path.
type DocumentPatch struct {
	Document   string      `json:"document"`
	Operations []Operation `json:"operations"`
}

// Decode parses a JSON array of operations.
func Decode(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return ops, nil
}
