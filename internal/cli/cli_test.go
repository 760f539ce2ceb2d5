package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputkit/internal/config"
	"inputkit/internal/logging"
)

// To regenerate golden files, run:
//
//	go test ./internal/cli -update
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateConfigDir(t)
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// isolateConfigDir points the platform config directory at an empty temp
// dir so a developer's own config file is never discovered.
func isolateConfigDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", dir)
}

func tracePath(name string) string {
	return filepath.Join("testdata", "traces", name)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// Tests for replay
// =============================================================================

func TestReplayGolden(t *testing.T) {
	tests := []struct {
		golden string
		args   []string
	}{
		{"replay_gestures", []string{"replay", tracePath("gestures.yaml")}},
		{"replay_focus", []string{"replay", tracePath("focus.yaml")}},
		{"replay_voice_drag", []string{"replay", tracePath("voice_drag.yaml")}},
		{"replay_voice_drag_json", []string{"replay", "--format", "json", tracePath("voice_drag.yaml")}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)
			g.Assert(t, tt.golden, []byte(out))
		})
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	first, err := runCLI(t, "replay", tracePath("gestures.yaml"))
	require.NoError(t, err)
	second, err := runCLI(t, "replay", tracePath("gestures.yaml"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReplayJSONDecodes(t *testing.T) {
	out, err := runCLI(t, "replay", "--format", "json", tracePath("focus.yaml"))
	require.NoError(t, err)

	var res ReplayResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "focus", res.Name)
	assert.Equal(t, uint64(7), res.Stats.Keyboard)
	assert.Equal(t, "keyboard", res.Stats.LastMethod)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, ReplayEvent{AtMs: 0, Source: "feedback", Detail: "focus"}, res.Events[0])
}

func TestReplayAppliesConfig(t *testing.T) {
	cfgPath := writeFile(t, "inputkit.toml", `
[gesture]
direction_filter = "left"

[feedback]
audio = false
haptic = true
`)

	out, err := runCLI(t, "replay", "--config", cfgPath, tracePath("gestures.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "canvas: tap at (12,10)")
	assert.NotContains(t, out, "swipe")
	assert.Contains(t, out, "interactions: 4 (pointer 4")
}

func TestReplayConfigCommands(t *testing.T) {
	cfgPath := writeFile(t, "inputkit.yaml", `
voice:
  enabled: true
  commands:
    - phrase: go home
      action: home
`)
	trace := writeFile(t, "trace.yaml", `
steps:
  - at: 10ms
    say: {text: go home now, final: true}
`)

	out, err := runCLI(t, "replay", "--config", cfgPath, trace)
	require.NoError(t, err)
	assert.Contains(t, out, "    10ms  action    home\n")
	assert.Contains(t, out, `matched "go home"`)
}

func TestReplaySettle(t *testing.T) {
	trace := writeFile(t, "hold.yaml", `
surfaces: [s]
steps:
  - at: 0s
    pointer: {surface: s, id: 1, kind: press, x: 5, y: 5}
`)

	out, err := runCLI(t, "replay", "--settle", "100ms", trace)
	require.NoError(t, err)
	assert.NotContains(t, out, "long_press")

	out, err = runCLI(t, "replay", trace)
	require.NoError(t, err)
	assert.Contains(t, out, "   500ms  gesture   s: long_press at (5,5)\n")
}

func TestReplayErrors(t *testing.T) {
	_, err := runCLI(t, "replay", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "replay")
	require.Error(t, err)

	bad := writeFile(t, "bad.toml", "gesture = 1\n")
	_, err = runCLI(t, "replay", "--config", bad, tracePath("gestures.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "replay", "--format", "xml", tracePath("gestures.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// =============================================================================
// Tests for trace parsing
// =============================================================================

func TestParseTraceDefaults(t *testing.T) {
	tr, err := ParseTrace([]byte("surfaces: [a]\n"))
	require.NoError(t, err)
	assert.False(t, tr.Start.IsZero())
	assert.Equal(t, defaultSettle, tr.Settle)
}

func TestParseTraceRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown surface",
			doc:  "steps:\n  - at: 0s\n    pointer: {surface: nope, id: 1, kind: press}\n",
			want: `unknown surface "nope"`,
		},
		{
			name: "bad pointer kind",
			doc:  "surfaces: [a]\nsteps:\n  - at: 0s\n    pointer: {surface: a, id: 1, kind: hover}\n",
			want: "unknown pointer event kind",
		},
		{
			name: "out of order",
			doc:  "steps:\n  - at: 2s\n  - at: 1s\n",
			want: "before the previous step",
		},
		{
			name: "two inputs",
			doc:  "steps:\n  - at: 0s\n    leave: true\n    hover: {x: 1, y: 1}\n",
			want: "more than one input",
		},
		{
			name: "duplicate region",
			doc:  "regions:\n  - id: a\n  - id: a\n",
			want: `duplicate id "a"`,
		},
		{
			name: "drag phase",
			doc:  "steps:\n  - at: 0s\n    drag: {phase: fling}\n",
			want: `unknown drag phase "fling"`,
		},
		{
			name: "malformed",
			doc:  "steps: [",
			want: "decode trace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrace([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReplayDirect(t *testing.T) {
	tr, err := LoadTrace(tracePath("voice_drag.yaml"))
	require.NoError(t, err)

	res, err := Replay(tr, config.DefaultConfig(), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Stats.Voice)
	assert.Equal(t, 3, res.Stats.MethodSwitches)
	assert.InDelta(t, 20.0, res.Stats.PointerPercent, 1e-9)
}

// =============================================================================
// Tests for config commands
// =============================================================================

func TestConfigValidate(t *testing.T) {
	valid := writeFile(t, "ok.toml", "[gesture]\ntap_threshold_px = 12.0\n")
	out, err := runCLI(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Equal(t, valid+": valid\n", out)

	silent := writeFile(t, "silent.toml", "[feedback]\naudio = false\nhaptic = false\n")
	out, err = runCLI(t, "config", "validate", silent)
	require.NoError(t, err)
	assert.Contains(t, out, "warning feedback.audio: audio and haptic feedback are both disabled")

	invalid := writeFile(t, "bad.toml", "[pinch]\nmin_scale = 2.0\nmax_scale = 1.0\n")
	out, err = runCLI(t, "config", "validate", invalid)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, invalid+": invalid\n")
	assert.Contains(t, out, "  error   pinch.max_scale: max scale 1 is below min scale 2\n")

	schema := writeFile(t, "schema.toml", "[gesture]\nunknown_knob = 1\n")
	out, err = runCLI(t, "config", "validate", schema)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "schema validation")

	_, err = runCLI(t, "config", "validate", filepath.Join(t.TempDir(), "none.toml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigValidateJSON(t *testing.T) {
	invalid := writeFile(t, "bad.json", `{"focus": {"dwell_time_ms": 5}}`)
	out, err := runCLI(t, "--format", "json", "config", "validate", invalid)
	require.Error(t, err)

	var res ValidateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []Finding{{Field: "focus.dwell_time_ms", Message: "value must be between 100 and 10000"}}, res.Errors)
}

func TestConfigValidateUsesConfigFlag(t *testing.T) {
	valid := writeFile(t, "ok.yaml", "focus:\n  dwell_time_ms: 400\n")
	out, err := runCLI(t, "--config", valid, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ": valid")
}

func TestConfigPrint(t *testing.T) {
	for _, as := range []string{"toml", "json", "yaml"} {
		t.Run(as, func(t *testing.T) {
			out, err := runCLI(t, "config", "print", "--as", as)
			require.NoError(t, err)
			assert.NoError(t, config.ValidateDocument([]byte(out), as))
		})
	}

	_, err := runCLI(t, "config", "print", "--as", "ini")
	require.Error(t, err)
}

func TestConfigPrintFromFile(t *testing.T) {
	path := writeFile(t, "c.toml", "[focus]\ndwell_time_ms = 450\n")
	out, err := runCLI(t, "--config", path, "config", "print", "--as", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 450, cfg.Focus.DwellTimeMs)
}

func TestConfigDiscovery(t *testing.T) {
	t.Setenv("INPUTKIT_LOG_LEVEL", "error")

	out, err := runCLI(t, "config", "print", "--as", "json")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "error", cfg.Logging.Level, "defaults pick up environment overrides")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[focus]\ndwell_time_ms = 650\n"), 0600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err = runCLI(t, "config", "print", "--as", "json")
	require.NoError(t, err)
	cfg = config.Config{}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 650, cfg.Focus.DwellTimeMs)
}

func TestConfigInitKeepsInvalidFile(t *testing.T) {
	path := writeFile(t, "broken.toml", "[focus\n")

	_, err := runCLI(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[focus\n", string(data))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "inputkit.yaml")

	out, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Focus, cfg.Focus)

	_, err = runCLI(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCLI(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestConfigSchema(t *testing.T) {
	out, err := runCLI(t, "config", "schema")
	require.NoError(t, err)
	assert.Equal(t, string(config.Schema()), out)
	assert.True(t, json.Valid([]byte(out)))
}

// =============================================================================
// Tests for exit codes
// =============================================================================

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))

	err := WrapExitError(ExitFailure, "wrapped", assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "wrapped: "+assert.AnError.Error(), err.Error())
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
