package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the quiz tools on an MCP server, exposing the
// pipeline to agent callers next to the webhook surface.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerSolveTool(srv)
	r.registerExtractTool(srv)
}

func inputSchema(properties map[string]any, required []string) json.RawMessage {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("quiz: marshal input schema: %v", err))
	}
	return data
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

// --- quiz_solve ---

type solveReq struct {
	URL       string `json:"url"`
	SubmitURL string `json:"submit_url,omitempty"`
	Email     string `json:"email,omitempty"`
	Secret    string `json:"secret,omitempty"`
}

func (r *Runner) registerSolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quiz_solve",
		Description: "Run the full quiz pipeline on a URL: render, extract attachments, derive an answer, submit it.",
		InputSchema: inputSchema(map[string]any{
			"url":        map[string]any{"type": "string", "description": "Quiz page URL"},
			"submit_url": map[string]any{"type": "string", "description": "Answer endpoint; discovered from the page when omitted"},
			"email":      map[string]any{"type": "string", "description": "Identity override"},
			"secret":     map[string]any{"type": "string", "description": "Shared secret override"},
		}, []string{"url"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in solveReq
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			return toolError(fmt.Errorf("quiz_solve: invalid arguments: %w", err)), nil
		}

		res := r.Solve(ctx, &Session{
			ID:        fmt.Sprintf("mcp-%d", time.Now().UnixNano()),
			QuizURL:   in.URL,
			SubmitURL: in.SubmitURL,
			Email:     in.Email,
			Secret:    in.Secret,
			StartedAt: time.Now(),
		})

		out := map[string]any{
			"state":       string(res.State),
			"answer":      res.Answer.Value,
			"confidence":  res.Answer.Confidence,
			"source":      res.Answer.Source,
			"http_status": res.HTTPStatus,
			"attempts":    res.Attempts,
			"elapsed_ms":  res.Elapsed.Milliseconds(),
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		return textResult(out)
	})
}

// --- quiz_extract ---

type extractToolReq struct {
	URL string `json:"url"`
}

func (r *Runner) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quiz_extract",
		Description: "Download one attachment URL and return its classified, extracted content without submitting anything.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Attachment URL or data: URI"},
		}, []string{"url"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in extractToolReq
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			return toolError(fmt.Errorf("quiz_extract: invalid arguments: %w", err)), nil
		}

		file, err := r.cfg.Fetcher.Fetch(ctx, in.URL)
		if err != nil {
			return toolError(fmt.Errorf("quiz_extract: %w", err)), nil
		}
		c := r.cfg.Extractor.Extract(ctx, file)

		out := map[string]any{
			"mime":     c.MIME,
			"kind":     string(c.Kind),
			"method":   string(c.Method),
			"filename": c.Filename,
			"text":     c.Text,
		}
		if c.Table != nil {
			out["header"] = c.Table.Header
			out["rows"] = len(c.Table.Rows)
		}
		if c.Err != "" {
			out["error"] = c.Err
		}
		return textResult(out)
	})
}
