package command

import (
	"sync"
	"testing"
)

type recordingHandler struct {
	name  string
	calls int
}

func (h *recordingHandler) Execute(ctx *Context) Result {
	h.calls++
	return Success
}

func (h *recordingHandler) Name() string { return h.name }

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	first := &recordingHandler{name: "first"}
	second := &recordingHandler{name: "second"}

	if !reg.RegisterSimple("show_help", []string{"help"}, first) {
		t.Fatal("first register failed")
	}
	if reg.RegisterSimple("show_help", []string{"other"}, second) {
		t.Fatal("duplicate register succeeded")
	}

	// First entry must be intact.
	if got := reg.FindCommand("show_help"); got != Handler(first) {
		t.Error("duplicate registration replaced the original handler")
	}
	desc, ok := reg.FindDescriptor("show_help")
	if !ok || len(desc.TriggerPhrases) != 1 || desc.TriggerPhrases[0] != "help" {
		t.Errorf("descriptor changed: %+v", desc)
	}
}

func TestRegistryRejectsEmptyNameAndNilHandler(t *testing.T) {
	reg := NewRegistry()
	if reg.Register(Descriptor{Name: ""}, &recordingHandler{}) {
		t.Error("empty name accepted")
	}
	if reg.Register(Descriptor{Name: "x"}, nil) {
		t.Error("nil handler accepted")
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterSimple("a", []string{"a"}, &recordingHandler{})

	if !reg.Unregister("a") {
		t.Error("unregister failed")
	}
	if reg.Unregister("a") {
		t.Error("second unregister succeeded")
	}
	if reg.FindCommand("a") != nil {
		t.Error("handler still present")
	}
	if len(reg.AllNames()) != 0 {
		t.Errorf("names = %v", reg.AllNames())
	}
}

func TestRegistryTriggerPhraseOrder(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterSimple("zoom", []string{"zoom to", "zoom in to"}, &recordingHandler{})
	reg.RegisterSimple("pan", []string{"pan to", "zoom to"}, &recordingHandler{})

	got := reg.AllTriggerPhrases()
	want := []string{"zoom to", "zoom in to", "pan to", "zoom to"}
	if len(got) != len(want) {
		t.Fatalf("phrases = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phrase[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryHasParameterizedCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterSimple("simple", []string{"simple"}, &recordingHandler{})
	if reg.HasParameterizedCommands() {
		t.Error("no parameterized commands yet")
	}

	reg.Register(Descriptor{
		Name:           "zoom_to",
		TriggerPhrases: []string{"zoom to"},
		Parameters:     []ParamDescriptor{{Name: "level", Type: TypeInteger}},
	}, &recordingHandler{})
	if !reg.HasParameterizedCommands() {
		t.Error("parameterized command not seen")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			reg.RegisterSimple(name, []string{name}, &recordingHandler{name: name})
			reg.AllDescriptors()
			reg.AllTriggerPhrases()
			reg.FindCommand(name)
		}(i)
	}
	wg.Wait()

	if len(reg.AllNames()) != 8 {
		t.Errorf("names = %v", reg.AllNames())
	}
}
