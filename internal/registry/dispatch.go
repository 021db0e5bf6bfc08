package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Dispatch resolves env.Name, validates params against the declared shape,
// and invokes the handler. It always returns a well-formed response
// envelope; handler failures and panics become HandlerError responses and
// never propagate to the caller.
func (r *Registry) Dispatch(env protocol.CommandEnv) protocol.ResponseEnv {
	entry, ok := r.Resolve(env.Name)
	if !ok {
		return protocol.ErrorResponse(protocol.KindUnknownCommand,
			fmt.Sprintf("unknown command: %s", env.Name))
	}
	if err := ValidateParams(entry.Accepts, env.Params); err != nil {
		return protocol.ErrorResponse(protocol.KindShape, err.Error())
	}
	return invoke(entry, env.Params)
}

func invoke(entry Entry, params map[string]any) (resp protocol.ResponseEnv) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("command", entry.Name).
				Any("panic", rec).
				Msg("handler panic")
			resp = protocol.ErrorResponse(protocol.KindHandler,
				fmt.Sprintf("handler panic: %v", rec))
		}
	}()

	result, err := entry.Handler(params)
	if err != nil {
		return protocol.ErrorResponse(protocol.KindHandler, err.Error())
	}
	return protocol.SuccessResponse(result)
}

// ValidateParams checks params against the declared shape. It rejects
// missing required parameters, undeclared parameters, and kind mismatches.
func ValidateParams(accepts []ParamSpec, params map[string]any) error {
	declared := make(map[string]ParamSpec, len(accepts))
	for _, spec := range accepts {
		declared[spec.Name] = spec
		if !spec.Required {
			continue
		}
		if _, ok := params[spec.Name]; !ok {
			return fmt.Errorf("missing required parameter %q", spec.Name)
		}
	}

	unknown := make([]string, 0)
	for name, value := range params {
		spec, ok := declared[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !matchesKind(spec.Kind, value) {
			return fmt.Errorf("parameter %q must be a %s", name, spec.Kind)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unexpected parameters: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func matchesKind(kind ParamKind, value any) bool {
	if value == nil {
		return true
	}
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindList:
		_, ok := value.([]any)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
