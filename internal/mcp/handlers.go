package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/llm"
	"github.com/autogenius/autogenius/internal/recommend"
)

func (s *Server) handleDiagnoseVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manufacturer, err := request.RequireString("manufacturer")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: manufacturer"), nil
	}
	model, err := request.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: model"), nil
	}
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	year := request.GetInt("year", 0)

	vehicle, err := catalog.ValidateManual(manufacturer, model, strconv.Itoa(year), time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid vehicle: %v", err)), nil
	}

	history := []llm.Message{{Role: llm.RoleUser, Content: question}}
	return mcp.NewToolResultText(s.diagnoser.Diagnose(ctx, vehicle, history)), nil
}

func (s *Server) handleRecommendProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", recommend.DefaultTopK)
	if limit <= 0 {
		limit = recommend.DefaultTopK
	}

	if s.recommender == nil {
		return mcp.NewToolResultText("No product catalog is loaded."), nil
	}
	products, err := s.recommender.Recommend(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(products) == 0 {
		return mcp.NewToolResultText("No matching products found."), nil
	}
	return mcp.NewToolResultText(formatProducts(products)), nil
}

func (s *Server) handleListVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manufacturer := request.GetString("manufacturer", "")
	if manufacturer == "" {
		return mcp.NewToolResultText("Manufacturers:\n" + strings.Join(catalog.Manufacturers(), "\n")), nil
	}
	models, ok := catalog.Models(manufacturer)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown manufacturer %q", manufacturer)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s models:\n%s", manufacturer, strings.Join(models, "\n"))), nil
}

// formatProducts renders products for agent consumption.
func formatProducts(products []recommend.Product) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d product(s):\n", len(products)))
	for i, p := range products {
		sb.WriteString(fmt.Sprintf("\n--- Product %d ---\n", i+1))
		sb.WriteString(fmt.Sprintf("Title: %s\n", p.Title))
		if p.Manufacturer != "" {
			sb.WriteString(fmt.Sprintf("Brand: %s\n", p.Manufacturer))
		}
		sb.WriteString(fmt.Sprintf("Price: PKR %s\n", p.Price.StringFixed(2)))
		if p.URL != "" {
			sb.WriteString(fmt.Sprintf("URL: %s\n", p.URL))
		}
	}
	return sb.String()
}
