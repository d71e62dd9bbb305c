// internal/replay/replay_test.go
package replay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadTestdata(t *testing.T) []*Scenario {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	var out []*Scenario
	for _, p := range paths {
		sc, err := Load(p)
		require.NoError(t, err, p)
		out = append(out, sc)
	}
	return out
}

func TestTestdataScenariosPass(t *testing.T) {
	scenarios := loadTestdata(t)
	results, err := RunAll(context.Background(), scenarios, nil, zaptest.NewLogger(t), 2)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for _, res := range results {
		assert.Empty(t, res.Error, res.Name)
		assert.True(t, res.Passed, "%s:\n%s", res.Name, res.Diff)
		assert.NotEmpty(t, res.ID)
	}
}

func TestRealtimeLoopMatchesVirtualClock(t *testing.T) {
	scenarios := loadTestdata(t)
	results, err := RunAll(context.Background(), scenarios, nil, zaptest.NewLogger(t), 0, WithRealtime())
	require.NoError(t, err)
	for _, res := range results {
		assert.Empty(t, res.Error, res.Name)
		assert.True(t, res.Passed, "%s:\n%s", res.Name, res.Diff)
	}
}

func TestRealtimeFiresDeferredWork(t *testing.T) {
	sc, err := Parse([]byte(`name: fake move after scroll` + clickPage + `
steps:
  - pointer: {type: move, x: 10, y: 10}
  - scrolled: true
  - advance: 300ms
expect:
  only: [mousemove]
  events:
    - mousemove@//*[@id='a']
    - mousemove@//*[@id='a']
`))
	require.NoError(t, err)
	res, err := Run(context.Background(), sc, nil, zaptest.NewLogger(t), WithRealtime())
	require.NoError(t, err)
	assert.True(t, res.Passed, res.Diff)
}

const clickPage = `
page: |
  <html><body>
  <div id="a" data-rect="0 0 100 100"></div>
  <div id="b" data-rect="200 0 100 100"></div>
  </body></html>
`

func TestMismatchIsReported(t *testing.T) {
	sc, err := Parse([]byte(`name: wrong target` + clickPage + `
steps:
  - pointer: {type: down, x: 10, y: 10, button: left}
  - pointer: {type: up, x: 10, y: 10, button: left}
expect:
  only: [click]
  events: ["click@//*[@id='b']"]
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), sc, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diff, "click@#b")
	assert.Equal(t, []string{"click@#a"}, res.Events)
}

func TestListenerActions(t *testing.T) {
	sc, err := Parse([]byte(`name: prevented mousedown` + clickPage + `
listeners:
  - target: //*[@id='a']
    event: mousedown
    actions: [prevent]
    focus: //*[@id='b']
    once: true
steps:
  - pointer: {type: down, x: 10, y: 10, button: left}
  - pointer: {type: up, x: 10, y: 10, button: left}
expect:
  focus: //*[@id='b']
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), sc, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, res.Passed, res.Diff)
	assert.Equal(t, "#b", res.Focus)
}

func TestParseRejectsBadScenarios(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `bogus: 1` + clickPage},
		{"no page", `name: x`},
		{"two actions in one step", clickPage + `
steps:
  - {clear: true, scrolled: true}
`},
		{"empty step", clickPage + `
steps:
  - {}
`},
		{"unknown listener action", clickPage + `
listeners:
  - {target: "//div", event: click, actions: [explode]}
`},
		{"malformed expectation", clickPage + `
expect:
  events: [click]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestScriptErrorsAreRecordedPerScenario(t *testing.T) {
	good, err := Parse([]byte(`name: good` + clickPage))
	require.NoError(t, err)
	bad, err := Parse([]byte(`name: bad` + clickPage + `
steps:
  - remove: //*[@id='missing']
`))
	require.NoError(t, err)

	results, err := RunAll(context.Background(), []*Scenario{good, bad}, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, err)
	assert.True(t, results[0].Passed)
	assert.Empty(t, results[0].Error)
	assert.False(t, results[1].Passed)
	assert.Contains(t, results[1].Error, "missing")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	sc, err := Parse([]byte(`name: cancelled` + clickPage + `
steps:
  - pointer: {type: move, x: 10, y: 10}
`))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, sc, nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = RunAll(ctx, []*Scenario{sc}, nil, zaptest.NewLogger(t), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettingsLayering(t *testing.T) {
	base := viper.New()
	base.Set("input.pointer.click_slop", 9.0)

	sc := &Scenario{Name: "plain"}
	cfg, err := Settings(sc, base)
	require.NoError(t, err)
	assert.Equal(t, 9.0, cfg.Input().Pointer.ClickSlop)
	assert.Equal(t, 40.0, cfg.Input().Drag.LinkHysteresis, "defaults survive the merge")

	sc.Config = map[string]any{"input.pointer.click_slop": 2.0}
	cfg, err = Settings(sc, base)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Input().Pointer.ClickSlop)

	sc.Config = map[string]any{"input.pointer.click_slop": -1.0}
	_, err = Settings(sc, base)
	assert.Error(t, err)
}

func TestMarshalResults(t *testing.T) {
	out, err := MarshalResults([]*Result{{ID: "x", Name: "n", Passed: true, Events: []string{"click@#a"}}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"click@#a"`)
	assert.Contains(t, string(out), `"passed": true`)
}
