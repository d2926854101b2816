package command

import "testing"

func zoomDescriptor() Descriptor {
	return Descriptor{
		Name:           "zoom_to",
		Description:    "Zoom the view to a level",
		TriggerPhrases: []string{"zoom to", "zoom in to", "set zoom"},
		Parameters: []ParamDescriptor{
			{
				Name:     "level",
				Type:     TypeInteger,
				Required: true,
				MinValue: Float64(1),
				MaxValue: Float64(20),
			},
		},
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	h := &recordingHandler{}
	reg.RegisterSimple("known", []string{"known"}, h)

	d := NewDispatcher(reg)
	if got := d.Dispatch("unknown", NewContext()); got != Failure {
		t.Errorf("Dispatch = %v, want Failure", got)
	}
	if h.calls != 0 {
		t.Error("handler invoked for unknown command")
	}
}

func TestDispatchValidInteger(t *testing.T) {
	reg := NewRegistry()
	h := &recordingHandler{}
	reg.Register(zoomDescriptor(), h)

	ctx := NewContext()
	ctx.SetParam("level", NewParamValue("15"))

	d := NewDispatcher(reg)
	if got := d.Dispatch("zoom_to", ctx); got != Success {
		t.Errorf("Dispatch = %v, want Success", got)
	}
	if h.calls != 1 {
		t.Errorf("handler calls = %d", h.calls)
	}
}

func TestDispatchRangeViolation(t *testing.T) {
	reg := NewRegistry()
	h := &recordingHandler{}
	reg.Register(zoomDescriptor(), h)

	ctx := NewContext()
	ctx.SetParam("level", NewParamValue("25"))

	d := NewDispatcher(reg)
	if got := d.Dispatch("zoom_to", ctx); got != InvalidParams {
		t.Errorf("Dispatch = %v, want InvalidParams", got)
	}
	if h.calls != 0 {
		t.Error("handler invoked despite invalid params")
	}
}

func TestDispatchMissingRequired(t *testing.T) {
	reg := NewRegistry()
	reg.Register(zoomDescriptor(), &recordingHandler{})

	d := NewDispatcher(reg)
	if got := d.Dispatch("zoom_to", NewContext()); got != InvalidParams {
		t.Errorf("Dispatch = %v, want InvalidParams", got)
	}
}

func TestValidateIntegerBoundaries(t *testing.T) {
	desc := zoomDescriptor()

	cases := []struct {
		value string
		ok    bool
	}{
		{"1", true},   // exactly min
		{"20", true},  // exactly max
		{"0", false},  // one below min
		{"21", false}, // one above max
		{"7x", false}, // trailing garbage
	}
	for _, tc := range cases {
		ctx := NewContext()
		ctx.SetParam("level", NewParamValue(tc.value))
		if got := ValidateAndFillDefaults(desc, ctx); got != tc.ok {
			t.Errorf("value %q: validate = %v, want %v", tc.value, got, tc.ok)
		}
	}
}

func TestValidateDefaultFill(t *testing.T) {
	desc := Descriptor{
		Name: "set_brightness",
		Parameters: []ParamDescriptor{
			{
				Name:         "value",
				Type:         TypeInteger,
				DefaultValue: "50",
				MinValue:     Float64(0),
				MaxValue:     Float64(100),
			},
		},
	}

	ctx := NewContext()
	if !ValidateAndFillDefaults(desc, ctx) {
		t.Fatal("validate failed")
	}
	if !ctx.HasParam("value") {
		t.Fatal("default not filled")
	}
	n, err := ctx.Param("value").AsInt()
	if err != nil || n != 50 {
		t.Errorf("value = %d, err = %v", n, err)
	}
}

func TestValidateOptionalWithoutDefaultStaysAbsent(t *testing.T) {
	desc := Descriptor{
		Name: "cmd",
		Parameters: []ParamDescriptor{
			{Name: "note", Type: TypeString},
		},
	}

	ctx := NewContext()
	if !ValidateAndFillDefaults(desc, ctx) {
		t.Fatal("validate failed")
	}
	if ctx.HasParam("note") {
		t.Error("optional parameter appeared from nowhere")
	}
	if len(ctx.Params()) != 0 {
		t.Errorf("params = %v", ctx.Params())
	}
}

func TestValidateEnum(t *testing.T) {
	desc := Descriptor{
		Name: "change_mode",
		Parameters: []ParamDescriptor{
			{
				Name:       "mode",
				Type:       TypeEnum,
				Required:   true,
				EnumValues: []string{"day", "night", "auto"},
			},
		},
	}

	ctx := NewContext()
	ctx.SetParam("mode", NewParamValue("NIGHT"))
	if !ValidateAndFillDefaults(desc, ctx) {
		t.Error("case-insensitive enum match failed")
	}

	ctx = NewContext()
	ctx.SetParam("mode", NewParamValue("dusk"))
	if ValidateAndFillDefaults(desc, ctx) {
		t.Error("unknown enum value accepted")
	}
}

func TestValidateBool(t *testing.T) {
	desc := Descriptor{
		Name: "toggle",
		Parameters: []ParamDescriptor{
			{Name: "enabled", Type: TypeBool, Required: true},
		},
	}

	ctx := NewContext()
	ctx.SetParam("enabled", NewParamValue("yes"))
	if !ValidateAndFillDefaults(desc, ctx) {
		t.Error("valid bool rejected")
	}

	ctx = NewContext()
	ctx.SetParam("enabled", NewParamValue("definitely"))
	if ValidateAndFillDefaults(desc, ctx) {
		t.Error("invalid bool accepted")
	}
}

// Tightening constraints must never make a failing value pass.
func TestValidateMonotoneInConstraints(t *testing.T) {
	base := Descriptor{
		Name: "cmd",
		Parameters: []ParamDescriptor{
			{Name: "n", Type: TypeInteger, Required: true},
		},
	}
	tightened := Descriptor{
		Name: "cmd",
		Parameters: []ParamDescriptor{
			{Name: "n", Type: TypeInteger, Required: true, MinValue: Float64(0), MaxValue: Float64(10)},
		},
	}

	for _, value := range []string{"abc", "", "5.5", "11x"} {
		ctx := NewContext()
		ctx.SetParam("n", NewParamValue(value))
		if ValidateAndFillDefaults(base, ctx) {
			continue // passed without constraints, not relevant here
		}
		ctx = NewContext()
		ctx.SetParam("n", NewParamValue(value))
		if ValidateAndFillDefaults(tightened, ctx) {
			t.Errorf("value %q fails unconstrained but passes constrained", value)
		}
	}
}
