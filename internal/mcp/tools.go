package mcp

import "github.com/mark3labs/mcp-go/mcp"

var diagnoseVehicleTool = mcp.NewTool("diagnose_vehicle",
	mcp.WithDescription("Ask the automotive diagnostic assistant about a problem with a specific vehicle."),
	mcp.WithString("manufacturer",
		mcp.Required(),
		mcp.Description("Vehicle manufacturer, e.g. Honda"),
	),
	mcp.WithString("model",
		mcp.Required(),
		mcp.Description("Vehicle model, e.g. Civic"),
	),
	mcp.WithNumber("year",
		mcp.Required(),
		mcp.Description("Model year"),
	),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Symptoms or question, e.g. 'grinding noise when braking'"),
	),
)

var recommendProductsTool = mcp.NewTool("recommend_products",
	mcp.WithDescription("Search the parts and tools catalog for products matching a problem description or OBD-II code."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Problem description, part name or OBD-II code"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of products to return (default 3)"),
	),
)

var listVehiclesTool = mcp.NewTool("list_vehicles",
	mcp.WithDescription("List supported manufacturers, or the models of one manufacturer."),
	mcp.WithString("manufacturer",
		mcp.Description("Manufacturer whose models to list; omit to list manufacturers"),
	),
)
