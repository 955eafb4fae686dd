package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ldi/dayplan/internal/session"
	"github.com/ldi/dayplan/internal/taskstore"
	"github.com/ldi/dayplan/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server. All tools act as whoever is signed in
// to sess.
func NewServer(sess *session.Session, tasks *taskstore.SessionClient) *server.MCPServer {
	s := server.NewMCPServer("Dayplan", "0.1.0")

	// Authentication
	s.AddTool(mcp.NewTool("sign_up",
		mcp.WithDescription("Create an account and sign in to it."),
		mcp.WithString("email", mcp.Description("Account email"), mcp.Required()),
		mcp.WithString("password", mcp.Description("Password (at least 6 characters)"), mcp.Required()),
	), signUpHandler(sess))

	s.AddTool(mcp.NewTool("sign_in",
		mcp.WithDescription("Sign in to an existing account."),
		mcp.WithString("email", mcp.Description("Account email"), mcp.Required()),
		mcp.WithString("password", mcp.Description("Password"), mcp.Required()),
	), signInHandler(sess))

	s.AddTool(mcp.NewTool("sign_out",
		mcp.WithDescription("End the current session."),
	), signOutHandler(sess))

	s.AddTool(mcp.NewTool("whoami",
		mcp.WithDescription("Show the signed-in account."),
	), whoamiHandler(sess))

	// Task Management
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks of the signed-in user."),
	), listTasksHandler(tasks))

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task. Sub-tasks are kept in the given order."),
		mcp.WithString("name", mcp.Description("Task name"), mcp.Required()),
		mcp.WithString("time_slot", mcp.Description("When the task is planned, e.g. 'Monday 9am-10am'"), mcp.Required()),
		mcp.WithArray("sub_tasks", mcp.Description("Sub-task names"), mcp.Items(map[string]any{"type": "string"})),
	), createTaskHandler(tasks))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update a task. Omitted fields keep their current value; sub_tasks replaces the whole list."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("time_slot", mcp.Description("New time slot")),
		mcp.WithBoolean("is_completed", mcp.Description("New completion flag")),
		mcp.WithArray("sub_tasks", mcp.Description("New sub-task names"), mcp.Items(map[string]any{"type": "string"})),
	), updateTaskHandler(tasks))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed, or as not completed with completed=false."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithBoolean("completed", mcp.Description("Completion flag (defaults to true)")),
	), completeTaskHandler(tasks))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task. Deleting a missing task succeeds."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(tasks))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func identityResult(id models.Identity) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func signUpHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email := mcp.ParseString(request, "email", "")
		password := mcp.ParseString(request, "password", "")

		id, err := sess.SignUp(ctx, email, password)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return identityResult(id)
	}
}

func signInHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email := mcp.ParseString(request, "email", "")
		password := mcp.ParseString(request, "password", "")

		id, err := sess.SignIn(ctx, email, password)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return identityResult(id)
	}
}

func signOutHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := sess.SignOut(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Signed out"), nil
	}
}

func whoamiHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := sess.Current()
		if !ok {
			return mcp.NewToolResultText("Not signed in"), nil
		}
		return identityResult(id)
	}
}

func listTasksHandler(tasks *taskstore.SessionClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := currentTasks(ctx, tasks)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": list})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func createTaskHandler(tasks *taskstore.SessionClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var draft taskstore.Draft
		draft.SetName(mcp.ParseString(request, "name", ""))
		draft.SetTimeSlot(mcp.ParseString(request, "time_slot", ""))

		subTasks, _, err := parseSubTasks(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, st := range subTasks {
			draft.AddSubTask(st.Name)
		}

		t, err := draft.Build()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		created, err := tasks.Add(ctx, t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(created)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func updateTaskHandler(tasks *taskstore.SessionClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		t, err := findTask(ctx, tasks, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if name, ok := args["name"].(string); ok {
			t.Name = name
		}
		if slot, ok := args["time_slot"].(string); ok {
			t.TimeSlot = slot
		}
		if done, ok := args["is_completed"].(bool); ok {
			t.IsCompleted = done
		}
		subTasks, present, err := parseSubTasks(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if present {
			t.SubTasks = subTasks
		}

		if err := tasks.Update(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText("Task updated successfully"), nil
	}
}

func completeTaskHandler(tasks *taskstore.SessionClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		completed := mcp.ParseBoolean(request, "completed", true)

		t, err := findTask(ctx, tasks, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := tasks.SetCompleted(ctx, t, completed); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if completed {
			return mcp.NewToolResultText(fmt.Sprintf("Task '%s' completed", t.Name)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' reopened", t.Name)), nil
	}
}

func deleteTaskHandler(tasks *taskstore.SessionClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		if err := tasks.Delete(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

// currentTasks reads the first snapshot of a live query and then stops it.
func currentTasks(ctx context.Context, tasks *taskstore.SessionClient) ([]models.Task, error) {
	sub, err := tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	select {
	case snap, ok := <-sub.C():
		if !ok {
			return nil, errors.New("task listing ended before the first snapshot")
		}
		return snap.Tasks, snap.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func findTask(ctx context.Context, tasks *taskstore.SessionClient, id string) (models.Task, error) {
	if id == "" {
		return models.Task{}, taskstore.ErrTaskIDRequired
	}
	list, err := currentTasks(ctx, tasks)
	if err != nil {
		return models.Task{}, err
	}
	for _, t := range list {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, &taskstore.NotFoundError{ID: id}
}

// parseSubTasks reports whether sub_tasks was given at all, so an empty
// list can clear the sub-tasks on update.
func parseSubTasks(request mcp.CallToolRequest) ([]models.SubTask, bool, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	raw, ok := args["sub_tasks"]
	if !ok || raw == nil {
		return nil, false, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, true, errors.New("sub_tasks must be an array of strings")
	}

	subTasks := make([]models.SubTask, 0, len(items))
	for _, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, true, errors.New("sub_tasks must be an array of strings")
		}
		subTasks = append(subTasks, models.SubTask{Name: name})
	}
	return subTasks, true, nil
}
