// Package mcpserver exposes contract comparison via MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/report"
	"github.com/claw-gang/amendment-diff/internal/temporal/workflows"
)

// Comparer runs one comparison and returns its report.
type Comparer interface {
	CompareReport(ctx context.Context, originalFolder, amendmentFolder, contractID string) (report.Report, error)
}

// StateReader returns the state of a contract's latest durable comparison.
type StateReader interface {
	State(ctx context.Context, contractID string) (*workflows.ComparisonResult, error)
}

// RegisterTools registers the comparison tools on server. states may be
// nil, in which case get_comparison_state is not offered.
func RegisterTools(server *mcp.Server, c Comparer, states StateReader) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "compare_contracts",
			Description: "Compare scanned pages of an original contract with an amendment and summarize what changed",
		},
		compareContractsHandler(c),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_summary",
			Description: "Check a contract change summary JSON document against the output format",
		},
		validateSummaryHandler(),
	)

	if states != nil {
		mcp.AddTool(server,
			&mcp.Tool{
				Name:        "get_comparison_state",
				Description: "Get the state of the latest comparison for a contract id",
			},
			getComparisonStateHandler(states),
		)
	}
}

type compareInput struct {
	OriginalFolder  string `json:"original_folder" jsonschema:"folder holding the original contract page images"`
	AmendmentFolder string `json:"amendment_folder" jsonschema:"folder holding the amendment page images"`
	ContractID      string `json:"contract_id" jsonschema:"identifier used to correlate traces"`
	Format          string `json:"format,omitempty" jsonschema:"json (default) or markdown"`
}

func compareContractsHandler(c Comparer) mcp.ToolHandlerFor[compareInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input compareInput) (*mcp.CallToolResult, any, error) {
		if input.OriginalFolder == "" || input.AmendmentFolder == "" || input.ContractID == "" {
			return errorResult("original_folder, amendment_folder and contract_id are required"), nil, nil
		}
		format, err := report.ParseFormat(input.Format)
		if err != nil || format == report.FormatHTML {
			return errorResult("format must be json or markdown"), nil, nil
		}

		rep, err := c.CompareReport(ctx, input.OriginalFolder, input.AmendmentFolder, input.ContractID)
		if err != nil {
			return failureResult(err)
		}
		if format == report.FormatMarkdown {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: report.Markdown(rep)}},
			}, nil, nil
		}
		return textResult(rep)
	}
}

type validateInput struct {
	Summary any `json:"summary" jsonschema:"the summary object with topics_touched, sections_changed and summary_of_the_change, or that object as a JSON string"`
}

func validateSummaryHandler() mcp.ToolHandlerFor[validateInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input validateInput) (*mcp.CallToolResult, any, error) {
		var raw []byte
		switch v := input.Summary.(type) {
		case nil:
			return errorResult("summary is required"), nil, nil
		case string:
			raw = []byte(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return errorResult("summary is not JSON: " + err.Error()), nil, nil
			}
			raw = data
		}
		summary, err := domain.DecodeContractChangeSummary(raw)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(map[string]any{
			"valid":              true,
			"no_material_change": summary.IsNoMaterialChange(),
			"sections":           domain.SummarySections(summary.SummaryOfTheChange),
		})
	}
}

type contractIDInput struct {
	ContractID string `json:"contract_id"`
}

func getComparisonStateHandler(states StateReader) mcp.ToolHandlerFor[contractIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input contractIDInput) (*mcp.CallToolResult, any, error) {
		if input.ContractID == "" {
			return errorResult("contract_id is required"), nil, nil
		}
		result, err := states.State(ctx, input.ContractID)
		if err != nil {
			return nil, nil, fmt.Errorf("get_comparison_state: %w", err)
		}
		return textResult(result)
	}
}

func failureResult(err error) (*mcp.CallToolResult, any, error) {
	body := map[string]string{"error": err.Error()}
	if stage, ok := domain.FailedStage(err); ok {
		body["stage"] = string(stage)
	}
	res, _, merr := textResult(body)
	if merr != nil {
		return nil, nil, merr
	}
	res.IsError = true
	return res, nil, nil
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
