package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/llm"
	"github.com/autogenius/autogenius/internal/recommend"
)

type mockDiagnoser struct {
	vehicle catalog.Vehicle
	history []llm.Message
}

func (m *mockDiagnoser) Diagnose(_ context.Context, v catalog.Vehicle, history []llm.Message) string {
	m.vehicle = v
	m.history = history
	return "Check the brake pads on your " + v.String() + "."
}

type mockRecommender struct {
	products []recommend.Product
	limit    int
}

func (m *mockRecommender) Recommend(_ context.Context, query string, topK int) ([]recommend.Product, error) {
	m.limit = topK
	if len(m.products) > topK {
		return m.products[:topK], nil
	}
	return m.products, nil
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"diagnose_vehicle", diagnoseVehicleTool, "diagnose_vehicle"},
		{"recommend_products", recommendProductsTool, "recommend_products"},
		{"list_vehicles", listVehiclesTool, "list_vehicles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(&mockDiagnoser{}, nil)
	if srv == nil || srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
}

func TestHandleDiagnoseVehicle(t *testing.T) {
	diag := &mockDiagnoser{}
	srv := NewServer(diag, nil)
	ctx := context.Background()

	t.Run("valid vehicle", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"manufacturer": "Honda",
			"model":        "Civic",
			"year":         float64(2018),
			"question":     "grinding noise when braking",
		}
		result, err := srv.handleDiagnoseVehicle(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if got := resultText(t, result); got != "Check the brake pads on your 2018 Honda Civic." {
			t.Errorf("text = %q", got)
		}
		if len(diag.history) != 1 || diag.history[0].Content != "grinding noise when braking" {
			t.Errorf("history = %+v", diag.history)
		}
	})

	t.Run("invalid year", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"manufacturer": "Honda",
			"model":        "Civic",
			"year":         float64(1850),
			"question":     "noise",
		}
		result, _ := srv.handleDiagnoseVehicle(ctx, req)
		if !result.IsError {
			t.Error("expected error for invalid year")
		}
	})

	t.Run("missing question", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"manufacturer": "Honda", "model": "Civic", "year": float64(2018)}
		result, _ := srv.handleDiagnoseVehicle(ctx, req)
		if !result.IsError {
			t.Error("expected error for missing question")
		}
	})
}

func TestHandleRecommendProducts(t *testing.T) {
	ctx := context.Background()
	rec := &mockRecommender{products: []recommend.Product{
		{Title: "Ceramic Brake Pads", Manufacturer: "Bosch", Price: decimal.RequireFromString("4500"), URL: "https://shop.example/pads"},
		{Title: "Brake Fluid DOT4", Manufacturer: "Castrol", Price: decimal.RequireFromString("1200.5")},
	}}
	srv := NewServer(&mockDiagnoser{}, rec)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "brake pads", "limit": float64(1)}
	result, err := srv.handleRecommendProducts(ctx, req)
	if err != nil || result.IsError {
		t.Fatalf("result = %+v, err = %v", result, err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Found 1 product(s)") || !strings.Contains(text, "Price: PKR 4500.00") {
		t.Errorf("text = %q", text)
	}
	if rec.limit != 1 {
		t.Errorf("limit = %d", rec.limit)
	}

	req.Params.Arguments = map[string]any{"query": "brake"}
	srv.handleRecommendProducts(ctx, req)
	if rec.limit != recommend.DefaultTopK {
		t.Errorf("default limit = %d", rec.limit)
	}

	req.Params.Arguments = map[string]any{}
	if result, _ := srv.handleRecommendProducts(ctx, req); !result.IsError {
		t.Error("expected error for missing query")
	}

	empty := NewServer(&mockDiagnoser{}, &mockRecommender{})
	req.Params.Arguments = map[string]any{"query": "anything"}
	result, _ = empty.handleRecommendProducts(ctx, req)
	if got := resultText(t, result); got != "No matching products found." {
		t.Errorf("empty text = %q", got)
	}
}

func TestHandleListVehicles(t *testing.T) {
	srv := NewServer(&mockDiagnoser{}, nil)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}
	result, _ := srv.handleListVehicles(ctx, req)
	if text := resultText(t, result); !strings.Contains(text, "Toyota") {
		t.Errorf("manufacturers = %q", text)
	}

	req.Params.Arguments = map[string]any{"manufacturer": "Honda"}
	result, _ = srv.handleListVehicles(ctx, req)
	if text := resultText(t, result); !strings.Contains(text, "Civic") {
		t.Errorf("models = %q", text)
	}

	req.Params.Arguments = map[string]any{"manufacturer": "Yugo"}
	if result, _ := srv.handleListVehicles(ctx, req); !result.IsError {
		t.Error("expected error for unknown manufacturer")
	}
}
