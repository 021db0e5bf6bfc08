package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool inputs/outputs. Shapes mirror the registry's declared parameter
// specs; violations are rejected here before any envelope is sent.

type EmptyInput struct{}

type LayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     []int  `json:"color"`
	IsVisible bool   `json:"is_visible"`
	IsLocked  bool   `json:"is_locked"`
	IsCurrent bool   `json:"is_current,omitempty"`
}

type ObjectInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Layer     string            `json:"layer"`
	IsVisible bool              `json:"is_visible"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	BBoxMin   []float64         `json:"bbox_min,omitempty"`
	BBoxMax   []float64         `json:"bbox_max,omitempty"`
}

type SimpleInfoResult struct {
	Version  string `json:"version"`
	FilePath string `json:"file_path"`
	Units    string `json:"units"`
}

type SceneInfoResult struct {
	Version      string       `json:"version"`
	FilePath     string       `json:"file_path"`
	Units        string       `json:"units"`
	ObjectsCount int          `json:"objects_count"`
	LayersCount  int          `json:"layers_count"`
	Objects      []ObjectInfo `json:"objects"`
	Layers       []LayerInfo  `json:"layers"`
}

type LayersResult struct {
	Layers       []LayerInfo `json:"layers"`
	Count        int         `json:"count"`
	CurrentLayer string      `json:"current_layer"`
}

type CreateCubeInput struct {
	Size     float64   `json:"size,omitempty" jsonschema:"cube edge length"`
	Location []float64 `json:"location,omitempty" jsonschema:"[x, y, z] placement, defaults to origin"`
	Name     string    `json:"name,omitempty" jsonschema:"object name"`
	Layer    string    `json:"layer,omitempty" jsonschema:"target layer, defaults to current"`
}

type CreateCubeResult struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Layer    string    `json:"layer"`
	Size     float64   `json:"size"`
	Location []float64 `json:"location"`
}

type AddLayerInput struct {
	Name  string `json:"name" jsonschema:"layer name"`
	Color []int  `json:"color,omitempty" jsonschema:"[r, g, b] channels in 0..255"`
}

type DeleteObjectInput struct {
	ID string `json:"id" jsonschema:"object id"`
}

type DeleteObjectResult struct {
	Deleted string `json:"deleted"`
}

type ObjectQueryInput struct {
	Filters        map[string]any `json:"filters,omitempty" jsonschema:"match layer, type, name, or metadata keys"`
	MetadataFields []string       `json:"metadata_fields,omitempty" jsonschema:"metadata keys to project"`
}

type ObjectQueryResult struct {
	Objects []ObjectInfo `json:"objects"`
	Count   int          `json:"count"`
}

type SetMetadataInput struct {
	ID       string            `json:"id" jsonschema:"object id"`
	Metadata map[string]string `json:"metadata" jsonschema:"keys to merge onto the object"`
}

type SetMetadataResult struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type ExecuteCodeInput struct {
	Code string `json:"code" jsonschema:"Lua snippet run against the scene API; set the result global to return a value"`
}

type ExecuteCodeResult struct {
	Result any `json:"result"`
}

type ViewportInput struct {
	Layer   string  `json:"layer,omitempty" jsonschema:"restrict to one layer"`
	MaxSize float64 `json:"max_size,omitempty" jsonschema:"image edge length in pixels"`
}

type ViewportResult struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

// call performs the bridge round trip and decodes the result into out.
func call[O any](ctx context.Context, client *Client, name string, params map[string]any) (O, error) {
	var out O
	result, err := client.Call(ctx, name, params)
	if err != nil {
		return out, err
	}
	if err := decodeResult(result, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", name, err)
	}
	return out, nil
}

func decodeResult(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func SimpleInfoHandler(client *Client) mcp.ToolHandlerFor[EmptyInput, SimpleInfoResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, SimpleInfoResult, error) {
		out, err := call[SimpleInfoResult](ctx, client, "get_simple_info", nil)
		return nil, out, err
	}
}

func SceneInfoHandler(client *Client) mcp.ToolHandlerFor[EmptyInput, SceneInfoResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, SceneInfoResult, error) {
		out, err := call[SceneInfoResult](ctx, client, "get_scene_info", nil)
		return nil, out, err
	}
}

func LayersHandler(client *Client) mcp.ToolHandlerFor[EmptyInput, LayersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, LayersResult, error) {
		out, err := call[LayersResult](ctx, client, "get_layers", nil)
		return nil, out, err
	}
}

func CreateCubeHandler(client *Client) mcp.ToolHandlerFor[CreateCubeInput, CreateCubeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateCubeInput) (*mcp.CallToolResult, CreateCubeResult, error) {
		if input.Location != nil && len(input.Location) != 3 {
			return nil, CreateCubeResult{}, fmt.Errorf("location must have exactly 3 coordinates")
		}
		params := map[string]any{}
		if input.Size != 0 {
			params["size"] = input.Size
		}
		if input.Location != nil {
			params["location"] = toAnyList(input.Location)
		}
		if input.Name != "" {
			params["name"] = input.Name
		}
		if input.Layer != "" {
			params["layer"] = input.Layer
		}
		out, err := call[CreateCubeResult](ctx, client, "create_cube", params)
		return nil, out, err
	}
}

func AddLayerHandler(client *Client) mcp.ToolHandlerFor[AddLayerInput, LayerInfo] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AddLayerInput) (*mcp.CallToolResult, LayerInfo, error) {
		if strings.TrimSpace(input.Name) == "" {
			return nil, LayerInfo{}, fmt.Errorf("name is required")
		}
		if input.Color != nil && len(input.Color) != 3 {
			return nil, LayerInfo{}, fmt.Errorf("color must have exactly 3 channels")
		}
		params := map[string]any{"name": input.Name}
		if input.Color != nil {
			params["color"] = toAnyList(input.Color)
		}
		out, err := call[LayerInfo](ctx, client, "add_layer", params)
		return nil, out, err
	}
}

func DeleteObjectHandler(client *Client) mcp.ToolHandlerFor[DeleteObjectInput, DeleteObjectResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObjectInput) (*mcp.CallToolResult, DeleteObjectResult, error) {
		if strings.TrimSpace(input.ID) == "" {
			return nil, DeleteObjectResult{}, fmt.Errorf("id is required")
		}
		out, err := call[DeleteObjectResult](ctx, client, "delete_object", map[string]any{"id": input.ID})
		return nil, out, err
	}
}

func ObjectQueryHandler(client *Client) mcp.ToolHandlerFor[ObjectQueryInput, ObjectQueryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ObjectQueryInput) (*mcp.CallToolResult, ObjectQueryResult, error) {
		params := map[string]any{}
		if input.Filters != nil {
			params["filters"] = input.Filters
		}
		if input.MetadataFields != nil {
			params["metadata_fields"] = toAnyList(input.MetadataFields)
		}
		out, err := call[ObjectQueryResult](ctx, client, "get_objects_with_metadata", params)
		return nil, out, err
	}
}

func SetMetadataHandler(client *Client) mcp.ToolHandlerFor[SetMetadataInput, SetMetadataResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetMetadataInput) (*mcp.CallToolResult, SetMetadataResult, error) {
		if strings.TrimSpace(input.ID) == "" {
			return nil, SetMetadataResult{}, fmt.Errorf("id is required")
		}
		if len(input.Metadata) == 0 {
			return nil, SetMetadataResult{}, fmt.Errorf("metadata is required")
		}
		meta := make(map[string]any, len(input.Metadata))
		for k, v := range input.Metadata {
			meta[k] = v
		}
		out, err := call[SetMetadataResult](ctx, client, "set_object_metadata", map[string]any{
			"id":       input.ID,
			"metadata": meta,
		})
		return nil, out, err
	}
}

func ExecuteCodeHandler(client *Client) mcp.ToolHandlerFor[ExecuteCodeInput, ExecuteCodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExecuteCodeInput) (*mcp.CallToolResult, ExecuteCodeResult, error) {
		if strings.TrimSpace(input.Code) == "" {
			return nil, ExecuteCodeResult{}, fmt.Errorf("code is required")
		}
		out, err := call[ExecuteCodeResult](ctx, client, "execute_code", map[string]any{"code": input.Code})
		return nil, out, err
	}
}

func ViewportHandler(client *Client) mcp.ToolHandlerFor[ViewportInput, ViewportResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ViewportInput) (*mcp.CallToolResult, ViewportResult, error) {
		params := map[string]any{}
		if input.Layer != "" {
			params["layer"] = input.Layer
		}
		if input.MaxSize != 0 {
			params["max_size"] = input.MaxSize
		}
		out, err := call[ViewportResult](ctx, client, "capture_viewport", params)
		return nil, out, err
	}
}

func toAnyList[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
