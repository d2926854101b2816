package command

import "testing"

func TestParamValueRoundTrip(t *testing.T) {
	v := NewParamValue("hello world")
	if v.AsString() != "hello world" {
		t.Errorf("AsString = %q", v.AsString())
	}
	if v.IsEmpty() {
		t.Error("expected non-empty")
	}
	if !NewParamValue("").IsEmpty() {
		t.Error("expected empty")
	}
}

func TestParamValueAsInt(t *testing.T) {
	n, err := NewParamValue("42").AsInt()
	if err != nil {
		t.Fatalf("AsInt failed: %v", err)
	}
	if n != 42 {
		t.Errorf("AsInt = %d", n)
	}

	if _, err := NewParamValue("42abc").AsInt(); err == nil {
		t.Error("expected error for trailing garbage")
	}
	if _, err := NewParamValue("").AsInt(); err == nil {
		t.Error("expected error for empty value")
	}
	if _, err := NewParamValue("99999999999999999999").AsInt(); err == nil {
		t.Error("expected error for out-of-range value")
	}
}

func TestParamValueAsDouble(t *testing.T) {
	f, err := NewParamValue("3.5").AsDouble()
	if err != nil {
		t.Fatalf("AsDouble failed: %v", err)
	}
	if f != 3.5 {
		t.Errorf("AsDouble = %f", f)
	}

	if _, err := NewParamValue("3.5x").AsDouble(); err == nil {
		t.Error("expected error for trailing garbage")
	}
}

func TestParamValueAsBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "yes", "Yes", "1"}
	for _, s := range truthy {
		b, err := NewParamValue(s).AsBool()
		if err != nil {
			t.Fatalf("AsBool(%q) failed: %v", s, err)
		}
		if !b {
			t.Errorf("AsBool(%q) = false", s)
		}
	}

	falsy := []string{"false", "No", "0", "FALSE"}
	for _, s := range falsy {
		b, err := NewParamValue(s).AsBool()
		if err != nil {
			t.Fatalf("AsBool(%q) failed: %v", s, err)
		}
		if b {
			t.Errorf("AsBool(%q) = true", s)
		}
	}

	for _, s := range []string{"", "maybe", "2", "on", "off"} {
		if _, err := NewParamValue(s).AsBool(); err == nil {
			t.Errorf("AsBool(%q) should fail", s)
		}
	}
}
