package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentskills/skillkit/pkg/presenter"
	"github.com/agentskills/skillkit/pkg/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect and invoke the registered skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered skills",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := skills.NewRegistry()

		presenter.Section("Skills")
		for _, d := range registry.Definitions() {
			presenter.Info(fmt.Sprintf("%-18s %-18s %s", d.Name, d.Capability, d.Description))
		}
		return nil
	},
}

var skillsSchemaCmd = &cobra.Command{
	Use:   "schema <name>",
	Short: "Print the input schema of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		def, ok := skills.NewRegistry().Get(args[0])
		if !ok {
			return errors.Wrapf(skills.ErrUnknownSkill, "%q", args[0])
		}

		out, err := renderSchema(def, format)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var skillsRunCmd = withTracing(&cobra.Command{
	Use:   "run <name>",
	Short: "Invoke one skill and print its result envelope",
	Long: `Invoke one skill with parameters given inline (--params) or read from a
JSON file (--params-file). The outcome is recorded in the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := readParams(cmd)
		if err != nil {
			return err
		}
		return runRequests(cmd, []skills.Request{{Skill: args[0], Params: params}})
	},
})

var skillsDispatchCmd = withTracing(&cobra.Command{
	Use:   "dispatch <file>",
	Short: "Invoke a batch of skills concurrently",
	Long: `Read a JSON array of {"skill": ..., "params": {...}} requests from file
(or stdin when file is "-"), run them concurrently and print their envelopes
in request order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		reqs, err := parseRequests(data)
		if err != nil {
			return err
		}
		return runRequests(cmd, reqs)
	},
})

func init() {
	skillsSchemaCmd.Flags().String("format", "json", "Output format (json or yaml)")
	skillsRunCmd.Flags().String("params", "", "Skill parameters as a JSON object")
	skillsRunCmd.Flags().String("params-file", "", "Path of a JSON file holding the skill parameters")

	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsSchemaCmd)
	skillsCmd.AddCommand(skillsRunCmd)
	skillsCmd.AddCommand(skillsDispatchCmd)
}

// renderSchema encodes the definition's input schema as indented JSON or as
// block-style YAML with the property order preserved.
func renderSchema(def skills.Definition, format string) (string, error) {
	data, err := json.MarshalIndent(def.Schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode schema")
	}

	switch strings.ToLower(format) {
	case "json", "":
		return string(data) + "\n", nil
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return "", errors.Wrap(err, "failed to convert schema")
		}
		blockStyle(&node)
		out, err := yaml.Marshal(&node)
		if err != nil {
			return "", errors.Wrap(err, "failed to encode schema")
		}
		return string(out), nil
	default:
		return "", errors.Errorf("unsupported format %q, use json or yaml", format)
	}
}

func blockStyle(node *yaml.Node) {
	node.Style &^= yaml.FlowStyle
	for _, child := range node.Content {
		blockStyle(child)
	}
}

func readParams(cmd *cobra.Command) (map[string]any, error) {
	inline, _ := cmd.Flags().GetString("params")
	path, _ := cmd.Flags().GetString("params-file")

	var data []byte
	switch {
	case inline != "" && path != "":
		return nil, errors.New("--params and --params-file are mutually exclusive")
	case inline != "":
		data = []byte(inline)
	case path != "":
		var err error
		if data, err = readInput(path); err != nil {
			return nil, err
		}
	default:
		return map[string]any{}, nil
	}

	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, errors.Wrap(err, "parameters must be a JSON object")
	}
	return params, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

func parseRequests(data []byte) ([]skills.Request, error) {
	var reqs []skills.Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, errors.Wrap(err, "requests must be a JSON array of {skill, params} objects")
	}
	if len(reqs) == 0 {
		return nil, errors.New("no requests to dispatch")
	}
	return reqs, nil
}

func runRequests(cmd *cobra.Command, reqs []skills.Request) error {
	ctx := cmd.Context()

	b, err := newBackends(ctx, appConfig)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	start := time.Now()
	envs := skills.NewRegistry().Dispatch(ctx, reqs, b.router, b.store, skillOptions(appConfig)...)
	stats := summarize(envs, time.Since(start))

	var out any = envs
	if len(envs) == 1 {
		out = envs[0]
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	presenter.Separator()
	presenter.Stats(stats)
	if stats.Failed > 0 {
		return errors.Errorf("%d of %d skill invocations failed", stats.Failed, stats.Total)
	}
	return nil
}

func summarize(envs []skills.Envelope, elapsed time.Duration) *presenter.DispatchStats {
	stats := &presenter.DispatchStats{Total: len(envs), Duration: elapsed}
	for _, env := range envs {
		if env.Status == skills.StatusSucceeded {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats
}
