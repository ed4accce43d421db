package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ascvd-risk-server/internal/domain"
	"github.com/ascvd-risk-server/internal/registry"
	"github.com/ascvd-risk-server/internal/risk"
)

// calculateRiskParams are the inputs for the calculate_ascvd_risk tool.
type calculateRiskParams struct {
	Sex              string  `json:"sex" jsonschema:"patient sex: male or female"`
	Race             string  `json:"race" jsonschema:"patient race: white, black or other"`
	Age              int     `json:"age" jsonschema:"age in years; the model is fitted for 40-79"`
	TotalCholesterol float64 `json:"total_cholesterol" jsonschema:"total cholesterol in mg/dL"`
	HDLCholesterol   float64 `json:"hdl_cholesterol" jsonschema:"HDL cholesterol in mg/dL"`
	SystolicBP       float64 `json:"systolic_bp" jsonschema:"systolic blood pressure in mmHg"`
	OnBPTreatment    bool    `json:"on_bp_treatment,omitempty" jsonschema:"currently on antihypertensive treatment"`
	Diabetes         bool    `json:"diabetes,omitempty" jsonschema:"diabetes diagnosis"`
	Smoker           bool    `json:"smoker,omitempty" jsonschema:"current smoker"`
}

func (p *calculateRiskParams) toProfile() domain.PatientProfile {
	return domain.PatientProfile{
		Sex:              domain.Sex(p.Sex),
		Race:             domain.Race(p.Race),
		Age:              p.Age,
		TotalCholesterol: p.TotalCholesterol,
		HDLCholesterol:   p.HDLCholesterol,
		SystolicBP:       p.SystolicBP,
		OnBPTreatment:    p.OnBPTreatment,
		Diabetes:         p.Diabetes,
		Smoker:           p.Smoker,
	}
}

// classifyRiskParams are the inputs for the classify_risk_level tool.
type classifyRiskParams struct {
	RiskPercent float64 `json:"risk_percent" jsonschema:"10-year ASCVD risk percentage in [0, 100]"`
}

// savePatientParams are the inputs for the save_patient tool.
type savePatientParams struct {
	Name string `json:"name,omitempty" jsonschema:"patient display name"`
	calculateRiskParams
}

// getPatientParams are the inputs for the get_patient tool.
type getPatientParams struct {
	ID string `json:"id" jsonschema:"patient record ID"`
}

// registerTools registers all tools with the MCP SDK.
func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "calculate_ascvd_risk",
		Description: "Calculate the 10-year ASCVD risk for a patient profile using the Pooled Cohort Equations, including risk category, statin recommendation and lifestyle guidance.",
	}, s.handleCalculateRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_risk_level",
		Description: "Classify a 10-year ASCVD risk percentage into its risk category, percentile bucket and statin recommendation tier.",
	}, s.handleClassifyRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_patient",
		Description: "Assess a patient profile and store it in the registry together with the computed risk.",
	}, s.handleSavePatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_patient",
		Description: "Retrieve a stored patient record with its last assessed risk by ID.",
	}, s.handleGetPatient)

	s.logger.WithField("tool_count", 4).Info("Registered MCP tools")
}

func (s *LiteServer) handleCalculateRisk(ctx context.Context, req *mcp.CallToolRequest, params calculateRiskParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "calculate_ascvd_risk").Info("Tool invoked")

	profile := params.toProfile()
	if err := profile.Validate(); err != nil {
		return errorResult(fmt.Sprintf("invalid patient profile: %v", err)), nil, nil
	}

	if cached, ok := s.results.Get(ctx, &profile); ok {
		return jsonResult(cached)
	}

	result, err := s.engine.ComputeRisk(&profile)
	if err != nil {
		return errorResult(fmt.Sprintf("risk computation failed: %v", err)), nil, nil
	}

	s.results.Set(ctx, &profile, result)
	return jsonResult(result)
}

func (s *LiteServer) handleClassifyRisk(ctx context.Context, req *mcp.CallToolRequest, params classifyRiskParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "classify_risk_level").Info("Tool invoked")

	if params.RiskPercent < 0 || params.RiskPercent > 100 {
		return errorResult("risk_percent must be in [0, 100]"), nil, nil
	}

	classification := risk.Classify(params.RiskPercent)
	return jsonResult(classification)
}

func (s *LiteServer) handleSavePatient(ctx context.Context, req *mcp.CallToolRequest, params savePatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "save_patient").Info("Tool invoked")

	profile := params.toProfile()
	if err := profile.Validate(); err != nil {
		return errorResult(fmt.Sprintf("invalid patient profile: %v", err)), nil, nil
	}

	result, err := s.engine.ComputeRisk(&profile)
	if err != nil {
		return errorResult(fmt.Sprintf("risk computation failed: %v", err)), nil, nil
	}

	record := &registry.PatientRecord{
		Name:         params.Name,
		Profile:      profile,
		RiskPercent:  result.RiskPercent,
		RiskCategory: result.RiskCategory,
	}

	if err := s.store.Save(ctx, record); err != nil {
		s.logger.WithError(err).Error("Failed to save patient record")
		return errorResult("failed to save patient record"), nil, nil
	}

	return jsonResult(record)
}

func (s *LiteServer) handleGetPatient(ctx context.Context, req *mcp.CallToolRequest, params getPatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_patient").Info("Tool invoked")

	if params.ID == "" {
		return errorResult("patient id is required"), nil, nil
	}

	record, err := s.store.Get(ctx, params.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errorResult(fmt.Sprintf("no patient with id %q", params.ID)), nil, nil
		}
		s.logger.WithError(err).Error("Failed to get patient record")
		return errorResult("failed to get patient record"), nil, nil
	}

	return jsonResult(record)
}

// jsonResult renders v as pretty-printed JSON tool output.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling tool result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, v, nil
}

// errorResult reports a tool-level failure without failing the protocol call.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
	}
}
