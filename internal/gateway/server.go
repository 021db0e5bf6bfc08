package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/formlab/modelbridge/internal/render"
)

const (
	serverName    = "modelbridge"
	serverVersion = "0.1.0"
)

// Server exposes the bridge's command set as MCP tools over stdio.
// The renderer is optional; without it the render_scene tool reports
// a configuration error instead of being absent, so the client can
// explain what is missing.
type Server struct {
	client   *Client
	renderer *render.Client
	mcp      *mcp.Server
}

func NewServer(client *Client, renderer *render.Client) *Server {
	s := &Server{
		client:   client,
		renderer: renderer,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_simple_info",
		Description: "Basic scene facts: host version, file path, and unit system.",
	}, SimpleInfoHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_scene_info",
		Description: "Full scene summary: every object and layer with counts.",
	}, SceneInfoHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_layers",
		Description: "List layers with colors, visibility, and the current layer.",
	}, LayersHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_cube",
		Description: "Create a cube at a location with an optional name and layer.",
	}, CreateCubeHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_layer",
		Description: "Add a named layer with an optional RGB color.",
	}, AddLayerHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_object",
		Description: "Delete one object by id.",
	}, DeleteObjectHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_objects_with_metadata",
		Description: "Query objects by layer, type, name, or metadata filters.",
	}, ObjectQueryHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_object_metadata",
		Description: "Merge metadata keys onto one object.",
	}, SetMetadataHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "execute_code",
		Description: "Run a Lua snippet against the scene API on the host.",
	}, ExecuteCodeHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "capture_viewport",
		Description: "Capture a top-down viewport image as base64 PNG.",
	}, ViewportHandler(s.client))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "render_scene",
		Description: "Capture the viewport and render it through an image model with a style prompt.",
	}, s.renderSceneHandler())
}

// Run serves MCP over stdio until the context is canceled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("server", serverName).Str("version", serverVersion).Msg("gateway: serving mcp over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type RenderSceneInput struct {
	Prompt  string  `json:"prompt" jsonschema:"style prompt for the image model"`
	Layer   string  `json:"layer,omitempty" jsonschema:"restrict the capture to one layer"`
	MaxSize float64 `json:"max_size,omitempty" jsonschema:"capture edge length in pixels"`
}

type RenderSceneResult struct {
	URL        string `json:"url"`
	Prediction string `json:"prediction"`
}

func (s *Server) renderSceneHandler() mcp.ToolHandlerFor[RenderSceneInput, RenderSceneResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RenderSceneInput) (*mcp.CallToolResult, RenderSceneResult, error) {
		if s.renderer == nil {
			return nil, RenderSceneResult{}, fmt.Errorf("rendering is not configured: set %s or %s", EnvReplicateToken, EnvReplicateTokenFile)
		}
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, RenderSceneResult{}, fmt.Errorf("prompt is required")
		}

		params := map[string]any{}
		if input.Layer != "" {
			params["layer"] = input.Layer
		}
		if input.MaxSize != 0 {
			params["max_size"] = input.MaxSize
		}
		capture, err := call[ViewportResult](ctx, s.client, "capture_viewport", params)
		if err != nil {
			return nil, RenderSceneResult{}, err
		}

		result, err := s.renderer.Render(ctx, render.Request{
			Prompt: input.Prompt,
			Image:  "data:image/png;base64," + capture.Data,
		})
		if err != nil {
			return nil, RenderSceneResult{}, err
		}
		return nil, RenderSceneResult{URL: result.URL(), Prediction: result.ID}, nil
	}
}
