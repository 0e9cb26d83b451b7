package quiz

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/quizhook/extract"
	"github.com/hazyhaar/quizhook/fetch"
)

var testMCPImpl = &mcp.Implementation{Name: "quizhook-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	r := testRunner(Config{
		Fetcher:   fetch.New(fetch.Config{URLValidator: allowAll}),
		Extractor: extract.New(extract.Config{}),
	})
	srv := mcp.NewServer(testMCPImpl, nil)
	r.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestMCP_Extract(t *testing.T) {
	session := mcpSession(t)

	payload := "name,value\na,5\nb,6\n"
	uri := "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(payload))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "quiz_extract",
		Arguments: map[string]any{"url": uri},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}

	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var out struct {
		Kind string   `json:"kind"`
		Rows int      `json:"rows"`
		Head []string `json:"header"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != "tabular" {
		t.Errorf("kind: got %q", out.Kind)
	}
	if out.Rows != 2 {
		t.Errorf("rows: got %d", out.Rows)
	}
}

func TestMCP_ExtractBadURL(t *testing.T) {
	session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "quiz_extract",
		Arguments: map[string]any{"url": "data:text/plain"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for malformed data URI")
	}
}

func TestMCP_ToolsListed(t *testing.T) {
	session := mcpSession(t)

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"quiz_solve", "quiz_extract"} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}
