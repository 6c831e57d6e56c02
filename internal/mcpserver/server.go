package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/edvin/clustermanifest/internal/generate"
	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/topology"
)

const (
	ToolGenerateManifests = "generate_manifests"
	ToolDeriveGroups      = "derive_groups"
	ToolTopologySchema    = "topology_schema"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Tools renders manifests for agents. Generation never writes anything:
// results are returned as tool output.
type Tools struct {
	gen    *generate.Generator
	logger zerolog.Logger
}

// NewTools creates the tool handlers backed by gen.
func NewTools(gen *generate.Generator, logger zerolog.Logger) *Tools {
	return &Tools{
		gen:    gen,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
}

// New creates an MCP server exposing the manifest tools.
func New(gen *generate.Generator, logger zerolog.Logger) *server.MCPServer {
	t := NewTools(gen, logger)
	srv := server.NewMCPServer(
		"manifestgen",
		Version,
		server.WithInstructions("Render per-node configuration manifests and role groups from a cluster topology (YAML or JSON)."),
	)
	srv.AddTools(t.ServerTools()...)
	return srv
}

// ServerTools returns the tool definitions with their handlers.
func (t *Tools) ServerTools() []server.ServerTool {
	topologyParam := mcp.WithString("topology",
		mcp.Required(),
		mcp.Description("Cluster topology document: install.version plus nodes with host, ip, fqdn and roles"),
	)
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolGenerateManifests,
				mcp.WithDescription("Build the manifest document of every node in a topology. Nothing is written to disk."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(true),
				topologyParam,
				mcp.WithString("host", mcp.Description("Only return the manifest for this host")),
			),
			Handler: t.generateManifests,
		},
		{
			Tool: mcp.NewTool(ToolDeriveGroups,
				mcp.WithDescription("Derive the cluster-wide address groups (all, control_plane, coordination, scheduler, worker) of a topology."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(true),
				topologyParam,
			),
			Handler: t.deriveGroups,
		},
		{
			Tool: mcp.NewTool(ToolTopologySchema,
				mcp.WithDescription("Return the JSON schema of a topology document."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.topologySchema,
		},
	}
}

type manifestOut struct {
	Host     string            `json:"host"`
	File     string            `json:"file"`
	Manifest manifest.Manifest `json:"manifest"`
}

func (t *Tools) generateManifests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, errResult := t.render(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	host := req.GetString("host", "")
	out := make([]manifestOut, 0, len(res.Entries))
	for _, e := range res.Entries {
		if host != "" && e.Host != host {
			continue
		}
		out = append(out, manifestOut{
			Host:     e.Host,
			File:     manifest.Filename(e.Host, manifest.FormatJSON),
			Manifest: e.Manifest,
		})
	}
	if host != "" && len(out) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("host %q is not in the topology", host)), nil
	}
	return jsonResult(map[string]any{"run_id": res.RunID, "manifests": out})
}

func (t *Tools) deriveGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, errResult := t.render(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(res.Groups)
}

func (t *Tools) topologySchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := topology.SchemaJSON()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// render returns either a result or a tool error describing bad input.
func (t *Tools) render(ctx context.Context, req mcp.CallToolRequest) (*generate.Result, *mcp.CallToolResult) {
	doc, err := req.RequireString("topology")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}

	res, err := t.gen.Render(ctx, strings.NewReader(doc))
	if err != nil {
		var invalid *topology.InvalidError
		if errors.As(err, &invalid) {
			lines := make([]string, 0, len(invalid.Problems))
			for _, p := range invalid.Problems {
				lines = append(lines, "- "+p.String())
			}
			return nil, mcp.NewToolResultError("invalid topology:\n" + strings.Join(lines, "\n"))
		}
		t.logger.Warn().Err(err).Str("tool", req.Params.Name).Msg("render failed")
		return nil, mcp.NewToolResultError(err.Error())
	}
	return res, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
