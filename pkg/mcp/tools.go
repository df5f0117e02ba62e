package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check modem connectivity, the active hub and how many jobs are running"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List every device of the house with its sync state and link count"),
		),
		s.handleListDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_device_links",
			mcp.WithDescription("Get the link table the house expects a device to hold, in slot order"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device address, e.g. 1A.2B.3C"),
			),
		),
		s.handleGetDeviceLinks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("schedule_job",
			mcp.WithDescription("Start a bulk job. Only one job of each kind runs at a time."),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Enum("sync", "import", "connect", "remove-device", "remove-gateway", "purge-hub-links"),
				mcp.Description("Job kind"),
			),
			mcp.WithBoolean("force",
				mcp.Description("sync only: write devices even when they are not dirty"),
			),
			mcp.WithString("device",
				mcp.Description("Target device address, required by remove-device and remove-gateway"),
			),
		),
		s.handleScheduleJob,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("cancel_job",
			mcp.WithDescription("Cancel the running job of a kind. It stops after the device in progress."),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Description("Job kind"),
			),
		),
		s.handleCancelJob,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("job_status",
			mcp.WithDescription("Show running jobs, or the result of a finished job by id"),
			mcp.WithString("job_id",
				mcp.Description("ID of a finished job (optional)"),
			),
		),
		s.handleJobStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("link_device",
			mcp.WithDescription("Run one linking exchange between the modem and a device"),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Enum("auto", "controller", "responder", "delete"),
				mcp.Description("Linking action; auto makes the modem the controller"),
			),
			mcp.WithNumber("group",
				mcp.Description("Link group 0-255 (default 0)"),
			),
			mcp.WithString("device",
				mcp.Required(),
				mcp.Description("Device address"),
			),
		),
		s.handleLinkDevice,
	)
}
