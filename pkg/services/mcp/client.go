// Package mcp serves skill capabilities through tools exposed by MCP servers.
package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
	"github.com/agentskills/skillkit/pkg/version"
)

// toolCaller is the part of *client.Client the service client relies on.
type toolCaller interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type server struct {
	name      string
	caller    toolCaller
	whiteList []glob.Glob
}

// Client is a ServiceClient whose capabilities are routed to MCP tools.
type Client struct {
	servers map[string]*server
	routes  map[skilltypes.Capability]Route
	retry   services.RetryConfig

	mu          sync.Mutex
	initialized bool
}

var _ skilltypes.ServiceClient = (*Client)(nil)

// NewClient builds the transports for every configured server and checks that
// each route points at a white-listed tool. Connections are opened by Initialize.
func NewClient(config Config, retryConfig services.RetryConfig) (*Client, error) {
	callers := make(map[string]toolCaller, len(config.Servers))
	for name, serverConfig := range config.Servers {
		c, err := newTransportClient(serverConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "mcp server %s", name)
		}
		callers[name] = c
	}
	return newClient(config, callers, retryConfig)
}

func newClient(config Config, callers map[string]toolCaller, retryConfig services.RetryConfig) (*Client, error) {
	c := &Client{
		servers: make(map[string]*server, len(callers)),
		routes:  make(map[skilltypes.Capability]Route, len(config.Routes)),
		retry:   retryConfig,
	}
	for name, caller := range callers {
		whiteList, err := compileWhiteList(config.Servers[name].ToolWhiteList)
		if err != nil {
			return nil, errors.Wrapf(err, "mcp server %s", name)
		}
		c.servers[name] = &server{name: name, caller: caller, whiteList: whiteList}
	}
	for capability, route := range config.Routes {
		if err := validateRoute(capability, route, c.servers); err != nil {
			return nil, err
		}
		c.routes[skilltypes.Capability(capability)] = route
	}
	return c, nil
}

// Capabilities lists the routed capabilities in name order.
func (c *Client) Capabilities() []skilltypes.Capability {
	caps := make([]skilltypes.Capability, 0, len(c.routes))
	for capability := range c.routes {
		caps = append(caps, capability)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Initialize starts every server connection and performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	for _, s := range c.sortedServers() {
		log := logger.G(ctx).WithField("name", s.name)
		log.Info("initializing mcp client")

		initReq := mcp.InitializeRequest{}
		initReq.Params.ClientInfo = mcp.Implementation{
			Name:    "skillkit",
			Version: version.Version,
		}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		if err := s.caller.Start(ctx); err != nil {
			return errors.Wrapf(err, "failed to start mcp client %s", s.name)
		}
		if _, err := s.caller.Initialize(ctx, initReq); err != nil {
			return errors.Wrapf(err, "failed to initialize mcp client %s", s.name)
		}
		log.Info("initialized mcp client")
	}
	c.initialized = true
	return nil
}

// Close shuts down every server connection. Failures are logged.
func (c *Client) Close(ctx context.Context) error {
	for _, s := range c.sortedServers() {
		if err := s.caller.Close(); err != nil {
			logger.G(ctx).WithField("name", s.name).WithError(err).Error("failed to close mcp client")
		}
	}
	return nil
}

func (c *Client) sortedServers() []*server {
	servers := make([]*server, 0, len(c.servers))
	for _, s := range c.servers {
		servers = append(servers, s)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].name < servers[j].name })
	return servers
}

func (c *Client) route(capability skilltypes.Capability) (Route, *server, error) {
	route, ok := c.routes[capability]
	if !ok {
		return Route{}, nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeUnsupported, "no mcp tool routed for capability", nil)
	}
	return route, c.servers[route.Server], nil
}

// Submit calls the routed tool with the job arguments and the caller identity.
func (c *Client) Submit(ctx context.Context, job skilltypes.Job) (*skilltypes.JobResult, error) {
	route, s, err := c.route(job.Capability)
	if err != nil {
		return nil, err
	}

	args := make(map[string]any, len(job.Arguments)+2)
	for k, v := range job.Arguments {
		args[k] = v
	}
	args["agent_id"] = job.AgentID
	args["task_id"] = job.TaskID

	return c.call(ctx, job.Capability, s, route.Tool, args)
}

// Fetch polls a pending job through the route's fetch tool.
func (c *Client) Fetch(ctx context.Context, capability skilltypes.Capability, jobID string) (*skilltypes.JobResult, error) {
	route, s, err := c.route(capability)
	if err != nil {
		return nil, err
	}
	if route.FetchTool == "" {
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeUnsupported, "no fetch tool routed for capability", nil)
	}
	result, err := c.call(ctx, capability, s, route.FetchTool, map[string]any{"job_id": jobID})
	if err != nil {
		return nil, err
	}
	if result.JobID == "" {
		result.JobID = jobID
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, capability skilltypes.Capability, s *server, tool string, args map[string]any) (*skilltypes.JobResult, error) {
	log := logger.G(ctx).WithField("server", s.name).WithField("tool", tool)

	var result *skilltypes.JobResult
	err := services.Retry(ctx, c.retry, capability, func() error {
		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = args

		resp, err := s.caller.CallTool(ctx, req)
		if err != nil {
			if ctxErr := skilltypes.FromContextError(capability, err); ctxErr != nil {
				return ctxErr
			}
			return skilltypes.NewExternalServiceError(capability, skilltypes.CodeUnavailable, "mcp tool call failed", err)
		}
		result, err = parseToolResult(capability, resp)
		return err
	})
	if err != nil {
		log.WithError(err).Debug("mcp tool call failed")
		return nil, err
	}
	log.WithField("status", result.Status).Debug("mcp tool call completed")
	return result, nil
}

// toolResponse is the job envelope a tool may answer with. A body without a
// status is the output of a finished job.
type toolResponse struct {
	Status skilltypes.JobStatus `mapstructure:"status"`
	JobID  string               `mapstructure:"job_id"`
	Output map[string]any       `mapstructure:"output"`
	Error  *skilltypes.JobError `mapstructure:"error"`
}

func firstText(resp *mcp.CallToolResult) (string, bool) {
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text, true
		}
	}
	return "", false
}

func parseToolResult(capability skilltypes.Capability, resp *mcp.CallToolResult) (*skilltypes.JobResult, error) {
	if resp == nil {
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeMalformedResponse, "mcp tool returned no result", nil)
	}
	text, ok := firstText(resp)

	if resp.IsError {
		var jobErr skilltypes.JobError
		if ok && json.Unmarshal([]byte(text), &jobErr) == nil && jobErr.Code != "" {
			return nil, skilltypes.FromJobError(capability, &jobErr)
		}
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeProviderError,
			"mcp tool reported an error", errors.New(strings.TrimSpace(text)))
	}

	if !ok {
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeMalformedResponse, "mcp tool returned no text content", nil)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeMalformedResponse, "mcp tool returned non-JSON content", err)
	}

	if _, hasStatus := body["status"]; !hasStatus {
		return &skilltypes.JobResult{Capability: capability, Status: skilltypes.JobSucceeded, Output: body}, nil
	}

	var envelope toolResponse
	if err := mapstructure.Decode(body, &envelope); err != nil {
		return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeMalformedResponse, "mcp tool returned an unexpected job shape", err)
	}
	return &skilltypes.JobResult{
		JobID:      envelope.JobID,
		Capability: capability,
		Status:     envelope.Status,
		Output:     envelope.Output,
		Error:      envelope.Error,
	}, nil
}
