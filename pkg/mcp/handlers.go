package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := GetHealthOutput{
		Status:    "healthy",
		Modem:     "connected",
		Jobs:      len(s.house.Jobs().Running()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if hub := s.house.HubID(); !hub.IsNull() {
		out.Hub = hub.String()
	}
	if !s.house.Transport().IsConnected() {
		out.Status = "unhealthy"
		out.Modem = "disconnected"
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hub := s.house.HubID()
	devices := s.house.Devices()

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceToInfo(d, hub))
	}

	out := ListDevicesOutput{
		Devices: infos,
		Count:   len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDeviceLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredID(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.house.Device(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}

	out := GetDeviceLinksOutput{
		Device:  id.String(),
		Records: d.Links.Records(),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleScheduleJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requiredString(request, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := map[string]any{}
	for k, v := range request.GetArguments() {
		if k != "kind" && v != nil {
			payload[k] = v
		}
	}

	k, params, err := s.validator.ParseJob(kind, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	job, err := s.house.Schedule(k, params, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to schedule job: %s", err)), nil
	}

	out := JobOutput{
		Job:     job.Snapshot(),
		Message: fmt.Sprintf("Started %s job %s over %d devices", k, job.ID(), job.Snapshot().Total),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := jobs.ParseKind(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %q", err, name)), nil
	}

	job, ok := s.house.Jobs().Active(kind)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no %s job is running", kind)), nil
	}
	if err := s.house.Cancel(job); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to cancel job: %s", err)), nil
	}

	out := JobOutput{
		Job:     job.Snapshot(),
		Message: fmt.Sprintf("Cancellation requested for %s job %s", kind, job.ID()),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := request.GetArguments()["job_id"].(string)
	if id == "" {
		out := JobStatusOutput{Running: s.house.Jobs().Running()}
		return mcp.NewToolResultText(formatJSON(out)), nil
	}

	for _, snap := range s.house.Jobs().Running() {
		if snap.JobID == id {
			out := JobStatusOutput{Running: []jobs.Snapshot{snap}}
			return mcp.NewToolResultText(formatJSON(out)), nil
		}
	}

	if s.history == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job %s is not running and history is disabled", id)), nil
	}
	result, err := s.history.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("job %s: %s", id, err)), nil
	}

	out := JobStatusOutput{Result: &result}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleLinkDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]any{}
	for k, v := range request.GetArguments() {
		if v != nil {
			payload[k] = v
		}
	}

	action, group, id, err := s.validator.ParseLink(payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.house.Link(ctx, action, group, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("linking failed: %s", err)), nil
	}

	out := LinkDeviceOutput{Result: result}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func requiredID(request mcp.CallToolRequest, key string) (insteon.ID, error) {
	s, err := requiredString(request, key)
	if err != nil {
		return insteon.NullID, err
	}
	return insteon.ParseID(s)
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
