package command

// ParamType enumerates the supported parameter types.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInteger
	TypeDouble
	TypeBool
	// TypeEnum is a string constrained to a fixed set of allowed
	// values, matched case-insensitively.
	TypeEnum
)

func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeEnum:
		return "enum"
	}
	return "unknown"
}

// ParamDescriptor describes a single parameter in a command's schema.
type ParamDescriptor struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool

	// DefaultValue is inserted when the parameter was not extracted.
	// Empty means no default.
	DefaultValue string

	// EnumValues lists the allowed values for TypeEnum, in declared
	// order.
	EnumValues []string

	// MinValue/MaxValue bound TypeInteger and TypeDouble values.
	MinValue *float64
	MaxValue *float64
}

// Float64 is a convenience for filling MinValue/MaxValue literals.
func Float64(v float64) *float64 {
	return &v
}

// Descriptor is the full schema for a command. It is registered
// alongside the command's handler and drives both recognition
// (trigger phrases feed guided matching and NLU intent scoring) and
// dispatch-time validation.
type Descriptor struct {
	// Name uniquely identifies the command; it is the registry key.
	Name string

	// Description in natural language, used by NLU backends.
	Description string

	// TriggerPhrases are the canonical ways the command is spoken. A
	// command needs at least one phrase to be recognizable.
	TriggerPhrases []string

	// Parameters is the parameter schema. Empty means a simple
	// command.
	Parameters []ParamDescriptor
}

func (d *Descriptor) IsParameterized() bool {
	return len(d.Parameters) > 0
}
