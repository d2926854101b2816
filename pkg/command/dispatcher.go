package command

import "strings"

// Dispatcher validates a context against the command's schema and
// invokes the handler. It borrows the registry, it does not own it.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch looks the command up, validates and default-fills the
// context parameters, and runs the handler. An unknown command yields
// Failure; a schema violation yields InvalidParams without invoking
// the handler.
func (d *Dispatcher) Dispatch(name string, ctx *Context) Result {
	handler := d.registry.FindCommand(name)
	if handler == nil {
		return Failure
	}

	descriptor, ok := d.registry.FindDescriptor(name)
	if !ok {
		return Failure
	}

	if !ValidateAndFillDefaults(descriptor, ctx) {
		return InvalidParams
	}

	return handler.Execute(ctx)
}

// ValidateAndFillDefaults walks the schema parameters in declared
// order. Absent required parameters fail; absent optional parameters
// with a default are inserted; present values must parse for their
// type and satisfy min/max or enum constraints. Returns false on the
// first violation without touching later parameters.
func ValidateAndFillDefaults(descriptor Descriptor, ctx *Context) bool {
	for _, param := range descriptor.Parameters {
		has := ctx.HasParam(param.Name)

		if !has && param.Required {
			return false
		}

		if !has && param.DefaultValue != "" {
			ctx.SetParam(param.Name, NewParamValue(param.DefaultValue))
			has = true
		}

		// Optional, no default: nothing to check.
		if !has {
			continue
		}

		value := ctx.Param(param.Name)

		switch param.Type {
		case TypeInteger:
			n, err := value.AsInt()
			if err != nil {
				return false
			}
			if param.MinValue != nil && n < int(*param.MinValue) {
				return false
			}
			if param.MaxValue != nil && n > int(*param.MaxValue) {
				return false
			}

		case TypeDouble:
			f, err := value.AsDouble()
			if err != nil {
				return false
			}
			if param.MinValue != nil && f < *param.MinValue {
				return false
			}
			if param.MaxValue != nil && f > *param.MaxValue {
				return false
			}

		case TypeBool:
			if _, err := value.AsBool(); err != nil {
				return false
			}

		case TypeEnum:
			found := false
			for _, allowed := range param.EnumValues {
				if strings.EqualFold(value.AsString(), allowed) {
					found = true
					break
				}
			}
			if !found {
				return false
			}

		case TypeString:
			// No further validation.
		}
	}

	return true
}
