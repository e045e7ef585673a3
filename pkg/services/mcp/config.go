package mcp

import (
	"fmt"
	"sort"

	"github.com/gobwas/glob"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/pkg/errors"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
)

type ServerConfig struct {
	ServerType    ServerType        `mapstructure:"server_type" json:"server_type"`         // stdio or sse
	Command       string            `mapstructure:"command" json:"command"`                 // stdio: command to start the server
	Args          []string          `mapstructure:"args" json:"args"`                       // stdio: arguments to pass to the server
	Envs          map[string]string `mapstructure:"envs" json:"envs"`                       // stdio: environment variables to set
	BaseURL       string            `mapstructure:"base_url" json:"base_url"`               // sse: base URL of the server
	Headers       map[string]string `mapstructure:"headers" json:"headers"`                 // sse: headers to send to the server
	ToolWhiteList []string          `mapstructure:"tool_white_list" json:"tool_white_list"` // glob patterns of callable tools
}

// Route binds a capability to the tool that serves it. FetchTool is only
// needed for servers that answer with pending jobs.
type Route struct {
	Server    string `mapstructure:"server" json:"server"`
	Tool      string `mapstructure:"tool" json:"tool"`
	FetchTool string `mapstructure:"fetch_tool" json:"fetch_tool"`
}

type Config struct {
	Servers map[string]ServerConfig `mapstructure:"servers" json:"servers"`
	Routes  map[string]Route        `mapstructure:"routes" json:"routes"`
}

// resolveServerType infers the transport when server_type is omitted.
func resolveServerType(config ServerConfig) (ServerType, error) {
	if config.ServerType != "" {
		return config.ServerType, nil
	}
	switch {
	case config.BaseURL != "":
		return ServerTypeSSE, nil
	case config.Command != "":
		return ServerTypeStdio, nil
	}
	return "", errors.New("server_type is required")
}

func newTransportClient(config ServerConfig) (*client.Client, error) {
	serverType, err := resolveServerType(config)
	if err != nil {
		return nil, err
	}

	switch serverType {
	case ServerTypeStdio:
		if config.Command == "" {
			return nil, errors.New("command is required for stdio server")
		}
		keys := make([]string, 0, len(config.Envs))
		for k := range config.Envs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		envArgs := make([]string, 0, len(keys))
		for _, k := range keys {
			envArgs = append(envArgs, fmt.Sprintf("%s=%s", k, config.Envs[k]))
		}
		tp := transport.NewStdio(config.Command, envArgs, config.Args...)
		return client.NewClient(tp), nil
	case ServerTypeSSE:
		if config.BaseURL == "" {
			return nil, errors.New("base_url is required for sse server")
		}
		tp, err := transport.NewSSE(config.BaseURL, transport.WithHeaders(config.Headers))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sse transport")
		}
		return client.NewClient(tp), nil
	}
	return nil, errors.Errorf("invalid server type %q", serverType)
}

func compileWhiteList(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid tool_white_list pattern %q", pattern)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// toolWhiteListed reports whether tool may be called. An empty white list
// allows every tool.
func toolWhiteListed(tool string, whiteList []glob.Glob) bool {
	if len(whiteList) == 0 {
		return true
	}
	for _, g := range whiteList {
		if g.Match(tool) {
			return true
		}
	}
	return false
}

func validateRoute(capability string, route Route, servers map[string]*server) error {
	if capability == "" {
		return errors.New("route capability is empty")
	}
	if !skilltypes.Capability(capability).Known() {
		return errors.Errorf("route references unknown capability %q", capability)
	}
	s, ok := servers[route.Server]
	if !ok {
		return errors.Errorf("route %s references unknown server %q", capability, route.Server)
	}
	if route.Tool == "" {
		return errors.Errorf("route %s has no tool", capability)
	}
	for _, tool := range []string{route.Tool, route.FetchTool} {
		if tool != "" && !toolWhiteListed(tool, s.whiteList) {
			return errors.Errorf("route %s tool %q is not white-listed on server %q", capability, tool, route.Server)
		}
	}
	return nil
}
