package bootstrap

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/tasktonic/tasktonic/pkg/catalyst"
	"github.com/tasktonic/tasktonic/pkg/formula"
	"github.com/tasktonic/tasktonic/pkg/ledger"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
	"github.com/tasktonic/tasktonic/pkg/metrics"
	"github.com/tasktonic/tasktonic/pkg/tonic"
)

// loggerServiceKey is the ledger service key every catalyst joins to share
// one logger-service instance, per spec.md's "the logging collector is
// itself a tonic and a service" design note.
const loggerServiceKey = "logger_service"

// loggerService is the logger-service singleton tonic: a real ledger
// entity, constructed stealth (its own sparkle log routes to Off{}, never
// through itself, to avoid the logger-needs-catalyst/catalyst-needs-logger
// bootstrap cycle) that forwards PutLog to whatever collector the formula
// resolved.
type loggerService struct {
	*tonic.Tonic
	inner logcollector.Collector
}

// PutLog implements logcollector.Collector by delegating to the collector
// this process actually resolved (screen, off, or a caller override).
func (s *loggerService) PutLog(r logcollector.Record) {
	s.inner.PutLog(r)
}

func newLoggerService(l *ledger.Ledger, context tonic.Node, inner logcollector.Collector) (*loggerService, error) {
	t, err := tonic.NewService(l, loggerServiceKey, "logger", context, tonic.NewHandlers(), logcollector.Off{})
	if err != nil {
		return nil, err
	}
	return &loggerService{Tonic: t, inner: inner}, nil
}

// Formula is a bootstrap sequence's own configuration: what to load, what
// to build, and which extra catalysts to start. Its name echoes the
// ledger-level formula it populates, since running it is what turns that
// formula from defaults into a live process.
type Formula struct {
	// Ledger is reused if non-nil; otherwise a fresh one is created.
	Ledger *ledger.Ledger
	// ConfigPath, if set, is a YAML file merged into the formula store
	// before Overrides.
	ConfigPath string
	// Overrides is merged into the formula store after ConfigPath.
	Overrides map[string]any
	// LogCollector overrides the collector resolved from the formula's
	// log/to key. Leave nil to let the formula decide.
	LogCollector logcollector.Collector
	// Registerer receives the process's catalyst/store metrics. Defaults
	// to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// NonMain lists the names of additional catalysts to create and run
	// alongside the main one.
	NonMain []string
	// Build constructs the user's starting tonics against rt, once the
	// main catalyst exists but before any non-main catalyst starts. A nil
	// Build leaves the fleet empty, which finishes the main catalyst (and
	// so Run) immediately.
	Build func(rt *Runtime, collector logcollector.Collector) error
}

// Runtime is what a bootstrap sequence hands back: the pieces a caller
// needs to interact with the running process or tear it down early.
type Runtime struct {
	Ledger  *ledger.Ledger
	Formula *formula.Formula
	Main    *catalyst.Catalyst
	Others  map[string]*catalyst.Catalyst
}

// LoadFormulaFile reads a YAML file of formula overrides into a nested
// map, ready for Merge or as Formula.Overrides' shape.
func LoadFormulaFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: reading %s: %w", path, err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("bootstrap: parsing %s: %w", path, err)
	}
	return out, nil
}

// Run performs the startup ordering: instantiate the ledger, install and
// override the formula, create the main catalyst at id 0, optionally
// stand up the logger service, build the user's starting tonics, start
// non-main catalysts, run the main catalyst to completion, then signal
// every other catalyst that the process is shutting down.
//
// Run blocks on the main catalyst's loop (step 8) unless the formula's
// tasktonic/testing/dont_start_catalysts flag is set, in which case no
// catalyst actually runs and Run returns immediately so a test harness
// can drive dispatch manually via the returned Runtime.
func (f *Formula) Run() (*Runtime, error) {
	// (1) instantiate ledger
	l := f.Ledger
	if l == nil {
		l = ledger.New()
	}
	fstore := l.Formula()

	// (2) install default formula
	formula.Default(fstore)

	// (3) apply user formula overrides
	if f.ConfigPath != "" {
		overrides, err := LoadFormulaFile(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		formula.Merge(fstore, overrides)
	}
	if f.Overrides != nil {
		formula.Merge(fstore, f.Overrides)
	}
	fm := formula.New(fstore)

	reg := f.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	catMetrics := metrics.NewCatalyst(reg)
	collector := f.resolveCollector(fm)

	// (4) create the main catalyst (id 0)
	main, err := catalyst.NewMain(l, collector, catMetrics)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: creating main catalyst: %w", err)
	}
	metrics.RegisterComponent("catalyst:main", true, "")

	// (5) optionally start the logger service: a real service-singleton
	// tonic, bound under the main catalyst, that every other catalyst
	// joins as a non-owning holder.
	var logger *loggerService
	if fm.LogTo() != "off" {
		logger, err = newLoggerService(l, main.Essence, collector)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: starting logger service: %w", err)
		}
		metrics.RegisterComponent("logger_service", true, fm.LogTo())
	} else {
		metrics.RegisterComponent("logger_service", true, "disabled")
	}

	rt := &Runtime{Ledger: l, Formula: fm, Main: main, Others: make(map[string]*catalyst.Catalyst)}
	metrics.RegisterComponent("ledger", true, "")

	// (6) create the user's starting tonics
	if f.Build != nil {
		if err := f.Build(rt, collector); err != nil {
			return nil, fmt.Errorf("bootstrap: build hook: %w", err)
		}
	}

	dontStart := fm.DontStartCatalysts()

	// (7) start non-main catalysts
	fm.SetProjectStatus(formula.StatusStartCatalysts)
	if !dontStart {
		for _, name := range f.NonMain {
			c, cerr := catalyst.New(l, name, main, main.Registry(), collector, catMetrics)
			if cerr != nil {
				return nil, fmt.Errorf("bootstrap: starting catalyst %q: %w", name, cerr)
			}
			rt.Others[name] = c
			if logger != nil {
				if _, jerr := tonic.JoinService(l, loggerServiceKey, c.Essence); jerr != nil {
					return nil, fmt.Errorf("bootstrap: joining logger service for catalyst %q: %w", name, jerr)
				}
			}
			c.RunAsync()
		}
	}

	// (8) run the main catalyst
	fm.SetProjectStatus(formula.StatusMainRunning)
	if !dontStart {
		main.FinishIfFleetEmpty()
		main.Run()
	}

	// (9) on main-catalyst loop exit, signal every other catalyst
	main.Registry().BroadcastShutdown()
	fm.SetProjectStatus(formula.StatusMainFinished)

	return rt, nil
}

func (f *Formula) resolveCollector(fm *formula.Formula) logcollector.Collector {
	if f.LogCollector != nil {
		return f.LogCollector
	}
	if fm.LogTo() == "off" {
		return logcollector.Off{}
	}
	return logcollector.NewScreenCollector(nil)
}
