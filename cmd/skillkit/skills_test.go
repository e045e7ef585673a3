package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/agentskills/skillkit/pkg/skills"
)

func transcribeDefinition(t *testing.T) skills.Definition {
	t.Helper()
	def, ok := skills.NewRegistry().Get(skills.SkillTranscribeAudio)
	require.True(t, ok)
	return def
}

func TestRenderSchema_JSON(t *testing.T) {
	out, err := renderSchema(transcribeDefinition(t), "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "agent_id")
	assert.Contains(t, props, "audio_source")
}

func TestRenderSchema_YAML(t *testing.T) {
	out, err := renderSchema(transcribeDefinition(t), "YAML")
	require.NoError(t, err)

	assert.Contains(t, out, "properties:")
	assert.Contains(t, out, "audio_source:")
	assert.NotContains(t, out, "properties: {", "mappings should be written in block style")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "object", decoded["type"])
}

func TestRenderSchema_UnsupportedFormat(t *testing.T) {
	_, err := renderSchema(transcribeDefinition(t), "toml")
	assert.EqualError(t, err, `unsupported format "toml", use json or yaml`)
}

func TestParseRequests(t *testing.T) {
	reqs, err := parseRequests([]byte(`[
		{"skill": "transcribe_audio", "params": {"agent_id": "a", "task_id": "t1"}},
		{"skill": "render_video", "params": {"agent_id": "a", "task_id": "t2"}}
	]`))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "transcribe_audio", reqs[0].Skill)
	assert.Equal(t, "t2", reqs[1].Params["task_id"])

	_, err = parseRequests([]byte(`[]`))
	assert.EqualError(t, err, "no requests to dispatch")

	_, err = parseRequests([]byte(`{"skill": "x"}`))
	assert.Error(t, err)
}

func newParamsCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("params", "", "")
	cmd.Flags().String("params-file", "", "")
	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	return cmd
}

func TestReadParams(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		params, err := readParams(newParamsCmd(t, map[string]string{"params": `{"agent_id":"a"}`}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"agent_id": "a"}, params)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"task_id":"t"}`), 0o600))

		params, err := readParams(newParamsCmd(t, map[string]string{"params-file": path}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"task_id": "t"}, params)
	})

	t.Run("none", func(t *testing.T) {
		params, err := readParams(newParamsCmd(t, nil))
		require.NoError(t, err)
		assert.Empty(t, params)
	})

	t.Run("both", func(t *testing.T) {
		_, err := readParams(newParamsCmd(t, map[string]string{"params": "{}", "params-file": "x.json"}))
		assert.EqualError(t, err, "--params and --params-file are mutually exclusive")
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := readParams(newParamsCmd(t, map[string]string{"params": `[1]`}))
		assert.ErrorContains(t, err, "parameters must be a JSON object")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readParams(newParamsCmd(t, map[string]string{"params-file": filepath.Join(t.TempDir(), "nope.json")}))
		assert.ErrorContains(t, err, "failed to read")
	})
}

func TestSummarize(t *testing.T) {
	stats := summarize([]skills.Envelope{
		{Status: skills.StatusSucceeded},
		{Status: skills.StatusFailed},
		{Status: skills.StatusSucceeded},
	}, 2*time.Second)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2*time.Second, stats.Duration)
}
