package host

import (
	"errors"
	"fmt"

	"github.com/Shopify/go-lua"
)

var ErrEmptyScript = errors.New("host: empty script")

// ScriptVM executes Lua snippets against the document. This is the
// documented arbitrary-code path: anything the scene API exposes is fair
// game for a script, and no sandboxing is attempted beyond the API surface.
// A fresh interpreter state is built per execution so scripts cannot leak
// globals into each other.
type ScriptVM struct {
	doc *Document
}

// NewScriptVM binds a VM to a document.
func NewScriptVM(doc *Document) *ScriptVM {
	return &ScriptVM{doc: doc}
}

// Run executes one snippet on the caller's goroutine, which must be the
// host turn. The script's `result` global (if set) becomes the return
// value; nil otherwise.
func (vm *ScriptVM) Run(code string) (any, error) {
	if code == "" {
		return nil, ErrEmptyScript
	}
	state := lua.NewState()
	lua.OpenLibraries(state)
	vm.registerSceneAPI(state)

	if err := lua.DoString(state, code); err != nil {
		return nil, fmt.Errorf("script error: %v", err)
	}

	state.Global("result")
	defer state.Pop(1)
	return luaValue(state, -1), nil
}

func (vm *ScriptVM) registerSceneAPI(state *lua.State) {
	doc := vm.doc
	fns := []lua.RegistryFunction{
		{Name: "version", Function: func(l *lua.State) int {
			l.PushString(Version)
			return 1
		}},
		{Name: "units", Function: func(l *lua.State) int {
			l.PushString(doc.Units)
			return 1
		}},
		{Name: "layer_names", Function: func(l *lua.State) int {
			l.NewTable()
			for i, layer := range doc.Layers() {
				l.PushString(layer.Name)
				l.RawSetInt(-2, i+1)
			}
			return 1
		}},
		{Name: "current_layer", Function: func(l *lua.State) int {
			l.PushString(doc.CurrentLayer().Name)
			return 1
		}},
		{Name: "add_layer", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			layer, err := doc.AddLayer(name, [3]uint8{0, 0, 0})
			if err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			l.PushString(layer.ID)
			return 1
		}},
		{Name: "add_box", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			layer := lua.CheckString(l, 2)
			x := lua.CheckNumber(l, 3)
			y := lua.CheckNumber(l, 4)
			z := lua.CheckNumber(l, 5)
			size := lua.CheckNumber(l, 6)
			obj, err := doc.AddBox(name, layer, [3]float64{x, y, z}, size)
			if err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			l.PushString(obj.ID)
			return 1
		}},
		{Name: "object_ids", Function: func(l *lua.State) int {
			l.NewTable()
			for i, obj := range doc.Objects() {
				l.PushString(obj.ID)
				l.RawSetInt(-2, i+1)
			}
			return 1
		}},
		{Name: "object_count", Function: func(l *lua.State) int {
			l.PushInteger(len(doc.Objects()))
			return 1
		}},
		{Name: "delete_object", Function: func(l *lua.State) int {
			id := lua.CheckString(l, 1)
			if err := doc.DeleteObject(id); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
		{Name: "set_meta", Function: func(l *lua.State) int {
			id := lua.CheckString(l, 1)
			key := lua.CheckString(l, 2)
			value := lua.CheckString(l, 3)
			if err := doc.SetObjectMetadata(id, map[string]string{key: value}); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
	}

	state.NewTable()
	lua.SetFunctions(state, fns, 0)
	state.SetGlobal("scene")
}

// luaValue converts the value at index into a plain Go value for the
// response envelope. Tables convert by their array part only.
func luaValue(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		return n
	case lua.TypeString:
		s, _ := state.ToString(index)
		return s
	case lua.TypeTable:
		length := state.RawLength(index)
		out := make([]any, 0, length)
		for i := 1; i <= length; i++ {
			state.RawGetInt(index, i)
			out = append(out, luaValue(state, -1))
			state.Pop(1)
		}
		return out
	default:
		return nil
	}
}
