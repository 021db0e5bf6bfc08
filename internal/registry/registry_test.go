package registry

import (
	"errors"
	"testing"

	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

func echoEntry(name string) Entry {
	return Entry{
		Name:        name,
		Description: "echo params back",
		Accepts: []ParamSpec{
			{Name: "value", Kind: KindString, Required: true},
		},
		Handler: func(params map[string]any) (any, error) {
			return params["value"], nil
		},
	}
}

func TestRegisterRejectsBadEntries(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()

	if err := r.Register(Entry{Name: "x", Description: "d"}); !errors.Is(err, ErrHandlerNil) {
		t.Fatalf("nil handler accepted: %v", err)
	}
	noop := func(map[string]any) (any, error) { return nil, nil }
	if err := r.Register(Entry{Name: "", Description: "d", Handler: noop}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("empty name accepted: %v", err)
	}
	if err := r.Register(Entry{Name: "Bad Name", Description: "d", Handler: noop}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("name with spaces accepted: %v", err)
	}
	if err := r.Register(Entry{Name: "ok_name", Handler: noop}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("missing description accepted: %v", err)
	}

	if err := r.Register(echoEntry("echo")); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}
	if err := r.Register(echoEntry("echo")); !errors.Is(err, ErrCommandExists) {
		t.Fatalf("duplicate accepted: %v", err)
	}
}

func TestResolveAndList(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	r.MustRegister(echoEntry("b_cmd"))
	r.MustRegister(echoEntry("a_cmd"))

	if _, ok := r.Resolve("a_cmd"); !ok {
		t.Fatalf("registered command not resolvable")
	}
	if _, ok := r.Resolve("missing"); ok {
		t.Fatalf("unregistered command resolved")
	}

	names := make([]string, 0)
	for _, entry := range r.List() {
		names = append(names, entry.Name)
	}
	if len(names) != 2 || names[0] != "a_cmd" || names[1] != "b_cmd" {
		t.Fatalf("list not sorted: %v", names)
	}
}

func TestDispatchUnknownCommandSkipsHandlers(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	invoked := 0
	r.MustRegister(Entry{
		Name:        "known",
		Description: "counts invocations",
		Handler: func(map[string]any) (any, error) {
			invoked++
			return nil, nil
		},
	})

	resp := r.Dispatch(protocol.CommandEnv{Name: "definitely_missing"})
	if resp.Status != protocol.StatusError {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if resp.Error.Kind != protocol.KindUnknownCommand {
		t.Fatalf("expected UnknownCommand, got %q", resp.Error.Kind)
	}
	if invoked != 0 {
		t.Fatalf("handler ran for unknown command")
	}
}

func TestDispatchShapeErrors(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	r.MustRegister(Entry{
		Name:        "sized",
		Description: "takes a numeric size",
		Accepts: []ParamSpec{
			{Name: "size", Kind: KindNumber, Required: true},
			{Name: "label", Kind: KindString},
		},
		Handler: func(params map[string]any) (any, error) {
			return params["size"], nil
		},
	})

	cases := []struct {
		name   string
		params map[string]any
	}{
		{"missing required", map[string]any{"label": "x"}},
		{"kind mismatch", map[string]any{"size": "ten"}},
		{"undeclared param", map[string]any{"size": 1.0, "extra": true}},
	}
	for _, tc := range cases {
		resp := r.Dispatch(protocol.CommandEnv{Name: "sized", Params: tc.params})
		if resp.Status != protocol.StatusError || resp.Error.Kind != protocol.KindShape {
			t.Fatalf("%s: expected ShapeError, got %+v", tc.name, resp)
		}
	}

	resp := r.Dispatch(protocol.CommandEnv{Name: "sized", Params: map[string]any{"size": 4.0, "label": "ok"}})
	if resp.Status != protocol.StatusSuccess {
		t.Fatalf("valid params rejected: %+v", resp)
	}
	if resp.Result != 4.0 {
		t.Fatalf("unexpected result: %v", resp.Result)
	}
}

func TestDispatchHandlerErrorAndPanic(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	r.MustRegister(Entry{
		Name:        "failing",
		Description: "always errors",
		Handler: func(map[string]any) (any, error) {
			return nil, errors.New("size must be positive")
		},
	})
	r.MustRegister(Entry{
		Name:        "panicking",
		Description: "always panics",
		Handler: func(map[string]any) (any, error) {
			panic("handler exploded")
		},
	})

	resp := r.Dispatch(protocol.CommandEnv{Name: "failing"})
	if resp.Error == nil || resp.Error.Kind != protocol.KindHandler {
		t.Fatalf("expected HandlerError, got %+v", resp)
	}
	if resp.Error.Message != "size must be positive" {
		t.Fatalf("handler message not preserved: %q", resp.Error.Message)
	}

	resp = r.Dispatch(protocol.CommandEnv{Name: "panicking"})
	if resp.Error == nil || resp.Error.Kind != protocol.KindHandler {
		t.Fatalf("panic must become HandlerError, got %+v", resp)
	}
	if err := resp.Validate(); err != nil {
		t.Fatalf("panic response malformed: %v", err)
	}
}
