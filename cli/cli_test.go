package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobile-next/doubletap/commands"
	"github.com/mobile-next/doubletap/utils"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// runCLI executes the root command with an isolated config path.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		utils.SetVerbose(false)
	})

	SetShutdownHook(utils.NewShutdownHook())

	if !containsFlag(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "missing.ini"))
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

func containsFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

func decodeClassify(t *testing.T, out string) commands.ClassifyResponse {
	t.Helper()
	var envelope struct {
		Status string                    `json:"status"`
		Data   commands.ClassifyResponse `json:"data"`
		Error  string                    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope), out)
	require.Equal(t, "ok", envelope.Status, envelope.Error)
	return envelope.Data
}

func TestParseTapList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{"single", "0", []int64{0}, false},
		{"several with spaces", "0, 100 ,500", []int64{0, 100, 500}, false},
		{"trailing comma", "0,100,", []int64{0, 100}, false},
		{"empty", "", nil, true},
		{"only commas", ",,", nil, true},
		{"not a number", "0,abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline, err := parseTapList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]int64, len(timeline))
			for i, tap := range timeline {
				got[i] = tap.At
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadTimeline(t *testing.T) {
	input := `# recorded on a phone
{"at": 0, "x": 10, "y": 20}

{"at": 120, "x": 12, "y": 21}
`
	timeline, err := readTimeline(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, commands.TimedTap{At: 0, X: 10, Y: 20}, timeline[0])
	assert.Equal(t, commands.TimedTap{At: 120, X: 12, Y: 21}, timeline[1])
}

func TestReadTimeline_Errors(t *testing.T) {
	_, err := readTimeline(strings.NewReader("{\"at\": 0}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = readTimeline(strings.NewReader("\n# nothing\n"))
	assert.Error(t, err)
}

func TestClassifyCommand_TapsFlag(t *testing.T) {
	out, err := runCLI(t, "classify", "--taps", "0,100,500", "--single-tap")
	require.NoError(t, err)

	resp := decodeClassify(t, out)
	assert.Equal(t, int64(300), resp.ThresholdMs)
	require.Len(t, resp.Outcomes, 2)

	assert.Equal(t, "double", resp.Outcomes[0].Kind)
	assert.Equal(t, 1, resp.Outcomes[0].Tap)
	assert.Equal(t, int64(100), resp.Outcomes[0].At)
	assert.True(t, resp.Outcomes[0].DefaultPrevented)

	assert.Equal(t, "single", resp.Outcomes[1].Kind)
	assert.Equal(t, 2, resp.Outcomes[1].Tap)
	assert.Equal(t, int64(800), resp.Outcomes[1].At)
}

func TestClassifyCommand_ThresholdAndSuppressFlags(t *testing.T) {
	out, err := runCLI(t, "classify", "--taps", "0,100", "--threshold", "50", "--single-tap", "--no-suppress")
	require.NoError(t, err)

	resp := decodeClassify(t, out)
	assert.Equal(t, int64(50), resp.ThresholdMs)
	require.Len(t, resp.Outcomes, 2)
	for _, o := range resp.Outcomes {
		assert.Equal(t, "single", o.Kind)
		assert.False(t, o.DefaultPrevented)
	}
	assert.Equal(t, int64(50), resp.Outcomes[0].At)
	assert.Equal(t, int64(150), resp.Outcomes[1].At)
}

func TestClassifyCommand_Inert(t *testing.T) {
	out, err := runCLI(t, "classify", "--taps", "0,10,20", "--single-tap", "--no-double-tap")
	require.NoError(t, err)

	resp := decodeClassify(t, out)
	assert.Equal(t, 3, resp.Taps)
	assert.Empty(t, resp.Outcomes)
}

func TestClassifyCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taps.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"at\":0,\"x\":3,\"y\":4}\n{\"at\":200,\"x\":3,\"y\":4}\n"), 0o600))

	out, err := runCLI(t, "classify", path)
	require.NoError(t, err)

	resp := decodeClassify(t, out)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, "double", resp.Outcomes[0].Kind)
	assert.Equal(t, 3, resp.Outcomes[0].X)
	assert.Equal(t, 4, resp.Outcomes[0].Y)
}

func TestClassifyCommand_Errors(t *testing.T) {
	_, err := runCLI(t, "classify", "--taps", "100,0")
	assert.Error(t, err)

	_, err = runCLI(t, "classify", "--taps", "0", filepath.Join(t.TempDir(), "taps.jsonl"))
	assert.Error(t, err)

	_, err = runCLI(t, "classify", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)

	_, err = runCLI(t, "classify", "--taps", "0", "--threshold", "-5")
	assert.Error(t, err)
}

func TestConfigFileSetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[classifier]\nthreshold_ms = 40\nsingle_tap = true\nsuppress_default = true\n\n[server]\nmax_sessions = 4\n"), 0o600))

	out, err := runCLI(t, "classify", "--taps", "0,100", "--config", path)
	require.NoError(t, err)

	resp := decodeClassify(t, out)
	assert.Equal(t, int64(40), resp.ThresholdMs)
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, "single", resp.Outcomes[0].Kind)

	// flags win over the file
	out, err = runCLI(t, "classify", "--taps", "0,100", "--config", path, "--threshold", "500")
	require.NoError(t, err)
	resp = decodeClassify(t, out)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, "double", resp.Outcomes[0].Kind)
}

func TestInitConfigInstallsRegistry(t *testing.T) {
	_, err := runCLI(t, "version")
	require.NoError(t, err)

	registry := commands.GetRegistry()
	require.NotNil(t, registry)
	assert.Equal(t, 1, getShutdownHook().Count())

	resp := commands.SessionCreateCommand(commands.SessionCreateRequest{})
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, registry.Len())

	require.NoError(t, getShutdownHook().Shutdown())
	assert.Equal(t, 0, registry.Len())
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "doubletap dev")
}

func TestPrintJson(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	require.NoError(t, printJson(commands.NewSuccessResponse(map[string]int{"taps": 2})))
	assert.JSONEq(t, `{"status":"ok","data":{"taps":2}}`, out.String())

	out.Reset()
	err := printJson(map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode output")
	assert.Empty(t, out.String())
}
