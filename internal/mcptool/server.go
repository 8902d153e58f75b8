// Package mcptool exposes scheduled-task management to agents over the
// Model Context Protocol, so a conversation like "every day at 8 AM send me
// a news digest" can end in a created task. The agent is responsible for
// turning natural language into a cron expression; this server only
// validates and stores it.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/recur/internal/service"
	"github.com/flemzord/recur/internal/task"
)

// Server wraps a TaskService and exposes it as MCP tools.
type Server struct {
	svc    *service.TaskService
	logger *slog.Logger
	server *server.MCPServer
}

// NewServer creates the MCP tool server with all tools registered.
func NewServer(svc *service.TaskService, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcptool: nil task service")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.server = server.NewMCPServer(
		"recur",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s, nil
}

// registerTools registers the scheduled-task tools. Every tool takes a
// user_id: the MCP client runs inside a per-user agent session and asserts
// the identity, mirroring the gateway's header contract.
func (s *Server) registerTools() {
	createTool := mcp.NewTool("scheduled_task_create",
		mcp.WithDescription("Create a recurring task that runs a prompt on a cron schedule. "+
			"Convert the user's natural-language timing to a cron expression first, "+
			"e.g. \"daily at 8 AM\" becomes \"0 8 * * *\", \"weekdays at 9\" becomes \"0 9 * * 1-5\". "+
			"Confirm the details with the user before creating, and ask for an email "+
			"address if they want to be notified."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Identifier of the user the task belongs to"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short descriptive task name, e.g. 'Daily News Report'"),
		),
		mcp.WithString("cron_expression",
			mcp.Required(),
			mcp.Description("Cron schedule (minute hour day month weekday), e.g. '0 8 * * *'"),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The instruction the agent executes at each occurrence"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone for the schedule, e.g. 'Asia/Shanghai'. Default: UTC"),
		),
		mcp.WithString("description",
			mcp.Description("Optional longer description of the task's purpose"),
		),
		mcp.WithString("notification_email",
			mcp.Description("Email address to notify after each run. Providing one enables email notification."),
		),
	)
	s.server.AddTool(createTool, s.handleCreate)

	listTool := mcp.NewTool("scheduled_task_list",
		mcp.WithDescription("List the user's scheduled tasks with their schedules and statuses"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Identifier of the user"),
		),
	)
	s.server.AddTool(listTool, s.handleList)

	pauseTool := mcp.NewTool("scheduled_task_pause",
		mcp.WithDescription("Pause a scheduled task. It stops firing until resumed."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Identifier of the user")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Identifier of the task")),
	)
	s.server.AddTool(pauseTool, s.handlePause)

	resumeTool := mcp.NewTool("scheduled_task_resume",
		mcp.WithDescription("Resume a paused task. Occurrences missed while paused are skipped."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Identifier of the user")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Identifier of the task")),
	)
	s.server.AddTool(resumeTool, s.handleResume)

	deleteTool := mcp.NewTool("scheduled_task_delete",
		mcp.WithDescription("Delete a scheduled task. Its execution history is kept."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Identifier of the user")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Identifier of the task")),
	)
	s.server.AddTool(deleteTool, s.handleDelete)

	runTool := mcp.NewTool("scheduled_task_run",
		mcp.WithDescription("Run a scheduled task immediately, outside its schedule, and report the outcome"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Identifier of the user")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Identifier of the task")),
	)
	s.server.AddTool(runTool, s.handleRun)
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cronExpr, err := request.RequireString("cron_expression")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tz := request.GetString("timezone", "UTC")
	description := request.GetString("description", "")
	email := request.GetString("notification_email", "")

	cfg := task.Config{
		Prompt:           prompt,
		NotificationMode: task.NotifyNone,
	}
	if email != "" {
		cfg.NotificationMode = task.NotifyEmail
		cfg.NotificationEmail = email
	}

	t, err := s.svc.Create(ctx, userID, service.CreateRequest{
		Name:           name,
		Description:    description,
		CronExpression: cronExpr,
		Timezone:       tz,
		Config:         cfg,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create scheduled task: %v", err)), nil
	}

	s.logger.Info("mcptool: task created", "task_id", t.ID, "user_id", userID)

	var b strings.Builder
	b.WriteString("Scheduled task created.\n\n")
	fmt.Fprintf(&b, "- Name: %s\n", t.Name)
	fmt.Fprintf(&b, "- Schedule: %s (%s)\n", t.CronExpression, t.Timezone)
	if t.NextRunAt != nil {
		fmt.Fprintf(&b, "- Next run: %s\n", t.NextRunAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "- Task ID: %s\n", t.ID)
	if email != "" {
		fmt.Fprintf(&b, "- Notification email: %s\n", email)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tasks, err := s.svc.List(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list scheduled tasks: %v", err)), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No scheduled tasks."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d scheduled task(s):\n", len(tasks))
	for i, t := range tasks {
		next := "n/a"
		if t.NextRunAt != nil {
			next = t.NextRunAt.Format("2006-01-02 15:04 MST")
		}
		fmt.Fprintf(&b, "%d. %s [%s] schedule %s (%s), next run %s, id %s\n",
			i+1, t.Name, t.Status, t.CronExpression, t.Timezone, next, t.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, taskID, errResult := requireTaskArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	t, err := s.svc.Pause(ctx, userID, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to pause task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %q paused.", t.Name)), nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, taskID, errResult := requireTaskArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	t, err := s.svc.Resume(ctx, userID, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resume task: %v", err)), nil
	}

	next := "n/a"
	if t.NextRunAt != nil {
		next = t.NextRunAt.Format("2006-01-02 15:04:05 MST")
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %q resumed. Next run: %s.", t.Name, next)), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, taskID, errResult := requireTaskArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.svc.Delete(ctx, userID, taskID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete task: %v", err)), nil
	}
	return mcp.NewToolResultText("Task deleted. Its execution history is kept."), nil
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, taskID, errResult := requireTaskArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	exec, err := s.svc.RunNow(ctx, userID, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run task: %v", err)), nil
	}

	switch exec.Status {
	case task.ExecutionCompleted:
		return mcp.NewToolResultText("Task executed successfully. " + exec.ResultSummary), nil
	default:
		return mcp.NewToolResultText(fmt.Sprintf("Task execution finished with status %s: %s",
			exec.Status, exec.ErrorMessage)), nil
	}
}

// requireTaskArgs extracts the user_id and task_id arguments shared by the
// per-task tools.
func requireTaskArgs(request mcp.CallToolRequest) (userID, taskID string, errResult *mcp.CallToolResult) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	taskID, err = request.RequireString("task_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return userID, taskID, nil
}

// ServeStdio serves the tools over stdio, the usual transport for a locally
// spawned MCP server.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}

// StartHTTP serves the tools over streamable HTTP on addr. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) StartHTTP(addr string) error {
	s.logger.Info("mcptool: listening", "addr", addr)
	return server.NewStreamableHTTPServer(s.server).Start(addr)
}
