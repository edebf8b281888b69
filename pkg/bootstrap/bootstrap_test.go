package bootstrap

import (
	"bytes"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktonic/tasktonic/pkg/formula"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
	"github.com/tasktonic/tasktonic/pkg/tonic"
)

func TestRunFinishesImmediatelyWithNoStartingTonics(t *testing.T) {
	var buf bytes.Buffer
	f := &Formula{
		Registerer:   prometheus.NewRegistry(),
		LogCollector: logcollector.NewScreenCollector(&buf),
	}
	rt, err := f.Run()
	require.NoError(t, err)
	assert.True(t, rt.Main.Finished())
	status, ok := rt.Formula.ProjectStatus()
	require.True(t, ok)
	assert.Equal(t, formula.StatusMainFinished, status)
}

func TestRunBuildsStartingTonicAndCompletesWhenItFinishes(t *testing.T) {
	var buf bytes.Buffer
	var spawned *tonic.Tonic
	f := &Formula{
		Registerer:   prometheus.NewRegistry(),
		LogCollector: logcollector.NewScreenCollector(&buf),
		Build: func(rt *Runtime, collector logcollector.Collector) error {
			h := tonic.NewHandlers()
			h.On(tonic.InternalSystem, "on_start", func(args []any) {
				spawned.Finish()
			})
			tn, err := rt.Main.Spawn("root", nil, h, collector)
			if err != nil {
				return err
			}
			spawned = tn
			return nil
		},
	}

	rt, err := f.Run()
	require.NoError(t, err)
	assert.True(t, rt.Main.Finished())
	assert.True(t, spawned.Finished())
}

func TestRunRespectsDontStartCatalysts(t *testing.T) {
	f := &Formula{
		Registerer: prometheus.NewRegistry(),
		Overrides: map[string]any{
			"tasktonic": map[string]any{
				"testing": map[string]any{
					"dont_start_catalysts": true,
				},
			},
		},
		NonMain: []string{"side"},
	}

	rt, err := f.Run()
	require.NoError(t, err)
	assert.False(t, rt.Main.Finished(), "main catalyst must not have run its loop")
	assert.Empty(t, rt.Others, "no non-main catalyst should have been started")
}

func TestLoadFormulaFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/formula.yaml"
	content := "tasktonic:\n  project:\n    name: demo-project\n  log:\n    to: \"off\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overrides, err := LoadFormulaFile(path)
	require.NoError(t, err)
	tasktonic := overrides["tasktonic"].(map[string]any)
	project := tasktonic["project"].(map[string]any)
	assert.Equal(t, "demo-project", project["name"])
}
