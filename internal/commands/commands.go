package commands

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/formlab/modelbridge/internal/host"
	"github.com/formlab/modelbridge/internal/registry"
)

// NewRegistry builds the full command table for one host document. The
// handlers assume they run on the host turn; the scheduler guarantees that.
func NewRegistry(doc *host.Document) *registry.Registry {
	vm := host.NewScriptVM(doc)
	r := registry.NewRegistry()

	r.MustRegister(registry.Entry{
		Name:        "get_simple_info",
		Description: "Basic host environment info: version, file path, units.",
		Handler: func(map[string]any) (any, error) {
			return map[string]any{
				"version":   host.Version,
				"file_path": doc.Path,
				"units":     doc.Units,
			}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "get_scene_info",
		Description: "Full scene summary: layers, objects, and counts.",
		Handler: func(map[string]any) (any, error) {
			return sceneInfo(doc), nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "get_layers",
		Description: "Layer table with the current layer marked.",
		Handler: func(map[string]any) (any, error) {
			layers := layerInfos(doc)
			return map[string]any{
				"layers":        layers,
				"count":         len(layers),
				"current_layer": doc.CurrentLayer().Name,
			}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "create_cube",
		Description: "Create an axis-aligned cube at a location.",
		Accepts: []registry.ParamSpec{
			{Name: "size", Kind: registry.KindNumber},
			{Name: "location", Kind: registry.KindList},
			{Name: "name", Kind: registry.KindString},
			{Name: "layer", Kind: registry.KindString},
		},
		Handler: func(params map[string]any) (any, error) {
			size := numberParam(params, "size", 1.0)
			if size <= 0 {
				return nil, errors.New("size must be positive")
			}
			location, err := pointParam(params, "location")
			if err != nil {
				return nil, err
			}
			obj, err := doc.AddBox(stringParam(params, "name", ""), stringParam(params, "layer", ""), location, size)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":       obj.ID,
				"name":     obj.Name,
				"type":     obj.Type,
				"layer":    obj.Layer,
				"size":     size,
				"location": []any{location[0], location[1], location[2]},
			}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "add_layer",
		Description: "Add a named layer, optionally with an RGB color.",
		Accepts: []registry.ParamSpec{
			{Name: "name", Kind: registry.KindString, Required: true},
			{Name: "color", Kind: registry.KindList},
		},
		Handler: func(params map[string]any) (any, error) {
			color, err := colorParam(params, "color")
			if err != nil {
				return nil, err
			}
			layer, err := doc.AddLayer(stringParam(params, "name", ""), color)
			if err != nil {
				return nil, err
			}
			return layerInfo(doc, layer), nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "delete_object",
		Description: "Delete a scene object by id.",
		Accepts: []registry.ParamSpec{
			{Name: "id", Kind: registry.KindString, Required: true},
		},
		Handler: func(params map[string]any) (any, error) {
			id := stringParam(params, "id", "")
			if err := doc.DeleteObject(id); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": id}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "get_objects_with_metadata",
		Description: "List objects filtered by metadata, with field projection.",
		Accepts: []registry.ParamSpec{
			{Name: "filters", Kind: registry.KindObject},
			{Name: "metadata_fields", Kind: registry.KindList},
		},
		Handler: func(params map[string]any) (any, error) {
			return objectsWithMetadata(doc, params)
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "set_object_metadata",
		Description: "Merge metadata keys onto a scene object.",
		Accepts: []registry.ParamSpec{
			{Name: "id", Kind: registry.KindString, Required: true},
			{Name: "metadata", Kind: registry.KindObject, Required: true},
		},
		Handler: func(params map[string]any) (any, error) {
			id := stringParam(params, "id", "")
			meta := make(map[string]string)
			if raw, ok := params["metadata"].(map[string]any); ok {
				for k, v := range raw {
					meta[k] = fmt.Sprint(v)
				}
			}
			if err := doc.SetObjectMetadata(id, meta); err != nil {
				return nil, err
			}
			return map[string]any{"id": id, "metadata": meta}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "execute_code",
		Description: "Run a Lua snippet against the scene API. Unrestricted.",
		Accepts: []registry.ParamSpec{
			{Name: "code", Kind: registry.KindString, Required: true},
		},
		Handler: func(params map[string]any) (any, error) {
			result, err := vm.Run(stringParam(params, "code", ""))
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		},
	})

	r.MustRegister(registry.Entry{
		Name:        "capture_viewport",
		Description: "Render a top-down PNG snapshot of the scene.",
		Accepts: []registry.ParamSpec{
			{Name: "layer", Kind: registry.KindString},
			{Name: "max_size", Kind: registry.KindNumber},
		},
		Handler: func(params map[string]any) (any, error) {
			size := int(numberParam(params, "max_size", 0))
			data, err := doc.Viewport(stringParam(params, "layer", ""), size)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"format": "png",
				"data":   base64.StdEncoding.EncodeToString(data),
			}, nil
		},
	})

	return r
}

func sceneInfo(doc *host.Document) map[string]any {
	objects := make([]map[string]any, 0)
	for _, obj := range doc.Objects() {
		objects = append(objects, objectInfo(obj, nil))
	}
	layers := layerInfos(doc)
	return map[string]any{
		"version":       host.Version,
		"file_path":     doc.Path,
		"units":         doc.Units,
		"objects_count": len(objects),
		"layers_count":  len(layers),
		"objects":       objects,
		"layers":        layers,
	}
}

func layerInfos(doc *host.Document) []map[string]any {
	out := make([]map[string]any, 0)
	for _, layer := range doc.Layers() {
		out = append(out, layerInfo(doc, layer))
	}
	return out
}

func layerInfo(doc *host.Document, layer host.Layer) map[string]any {
	return map[string]any{
		"id":         layer.ID,
		"name":       layer.Name,
		"color":      []any{layer.Color[0], layer.Color[1], layer.Color[2]},
		"is_visible": layer.Visible,
		"is_locked":  layer.Locked,
		"is_current": layer.Name == doc.CurrentLayer().Name,
	}
}

func objectInfo(obj *host.Object, fields []string) map[string]any {
	meta := make(map[string]any, len(obj.Metadata))
	if len(fields) == 0 {
		for k, v := range obj.Metadata {
			meta[k] = v
		}
	} else {
		for _, field := range fields {
			if v, ok := obj.Metadata[field]; ok {
				meta[field] = v
			}
		}
	}
	return map[string]any{
		"id":         obj.ID,
		"name":       obj.Name,
		"type":       obj.Type,
		"layer":      obj.Layer,
		"is_visible": obj.Visible,
		"metadata":   meta,
		"bbox_min":   []any{obj.Min[0], obj.Min[1], obj.Min[2]},
		"bbox_max":   []any{obj.Max[0], obj.Max[1], obj.Max[2]},
	}
}

func objectsWithMetadata(doc *host.Document, params map[string]any) (any, error) {
	filters, _ := params["filters"].(map[string]any)
	var fields []string
	if raw, ok := params["metadata_fields"].([]any); ok {
		for _, f := range raw {
			s, ok := f.(string)
			if !ok {
				return nil, errors.New("metadata_fields entries must be strings")
			}
			fields = append(fields, s)
		}
	}

	matches := make([]map[string]any, 0)
	for _, obj := range doc.Objects() {
		if !matchesFilters(obj, filters) {
			continue
		}
		matches = append(matches, objectInfo(obj, fields))
	}
	return map[string]any{"objects": matches, "count": len(matches)}, nil
}

func matchesFilters(obj *host.Object, filters map[string]any) bool {
	for key, want := range filters {
		switch key {
		case "layer":
			if fmt.Sprint(want) != obj.Layer {
				return false
			}
		case "type":
			if fmt.Sprint(want) != obj.Type {
				return false
			}
		case "name":
			if fmt.Sprint(want) != obj.Name {
				return false
			}
		default:
			if got, ok := obj.Metadata[key]; !ok || got != fmt.Sprint(want) {
				return false
			}
		}
	}
	return true
}
