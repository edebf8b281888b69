package formula

import (
	"fmt"

	"github.com/tasktonic/tasktonic/pkg/store"
)

// Status is the project-wide lifecycle phase recorded at
// tasktonic/project/status.
type Status string

const (
	StatusStarting        Status = "starting"
	StatusStartCatalysts  Status = "start_catalysts"
	StatusMainRunning     Status = "main_running"
	StatusMainFinished    Status = "main_finished"
)

// LogLevel is the logging verbosity recorded at tasktonic/log/default.
type LogLevel string

const (
	LogStealth LogLevel = "stealth"
	LogOff     LogLevel = "off"
	LogQuiet   LogLevel = "quiet"
	LogFull    LogLevel = "full"
)

const (
	keyProjectName   = "tasktonic/project/name"
	keyProjectStatus = "tasktonic/project/status"
	keyLogTo         = "tasktonic/log/to"
	keyLogDefault    = "tasktonic/log/default"
	keyLogServices   = "tasktonic/log/service"
	keyDontStart     = "tasktonic/testing/dont_start_catalysts"
)

// Formula is a typed view over a store.Store's tasktonic/* configuration
// keys. It does not own the store; several Formulas can wrap the same
// one, same as several tonics share the same ledger.
type Formula struct {
	s *store.Store
}

// New wraps s.
func New(s *store.Store) *Formula {
	return &Formula{s: s}
}

// Default seeds the keys a fresh project formula must have before
// bootstrap step (3)'s user overrides are applied.
func Default(s *store.Store) {
	sc := s.Group("formula:default", true)
	defer sc.Close()
	sc.Set(keyProjectStatus, string(StatusStarting))
	sc.Set(keyLogTo, "screen")
	sc.Set(keyLogDefault, string(LogQuiet))
	sc.Set(keyDontStart, false)
}

// ProjectName returns tasktonic/project/name.
func (f *Formula) ProjectName() (string, bool) {
	v, ok := f.s.Get(keyProjectName)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetProjectName sets tasktonic/project/name.
func (f *Formula) SetProjectName(name string) {
	f.s.Set(keyProjectName, name)
}

// ProjectStatus returns tasktonic/project/status.
func (f *Formula) ProjectStatus() (Status, bool) {
	v, ok := f.s.Get(keyProjectStatus)
	if !ok {
		return "", false
	}
	return Status(v.(string)), true
}

// SetProjectStatus sets tasktonic/project/status.
func (f *Formula) SetProjectStatus(status Status) {
	f.s.Set(keyProjectStatus, string(status))
}

// LogTo returns tasktonic/log/to; "off" disables the logger service
// entirely.
func (f *Formula) LogTo() string {
	return f.s.GetOr(keyLogTo, "off").(string)
}

// SetLogTo sets tasktonic/log/to.
func (f *Formula) SetLogTo(to string) {
	f.s.Set(keyLogTo, to)
}

// LogDefault returns tasktonic/log/default.
func (f *Formula) LogDefault() LogLevel {
	return LogLevel(f.s.GetOr(keyLogDefault, string(LogQuiet)).(string))
}

// SetLogDefault sets tasktonic/log/default.
func (f *Formula) SetLogDefault(level LogLevel) {
	f.s.Set(keyLogDefault, string(level))
}

// DontStartCatalysts returns tasktonic/testing/dont_start_catalysts, the
// test-harness hook that keeps a bootstrap sequence from spawning real
// goroutines for non-main catalysts.
func (f *Formula) DontStartCatalysts() bool {
	return f.s.GetOr(keyDontStart, false).(bool)
}

// SetDontStartCatalysts sets tasktonic/testing/dont_start_catalysts.
func (f *Formula) SetDontStartCatalysts(v bool) {
	f.s.Set(keyDontStart, v)
}

// LogService describes one available logger-service implementation
// registered under tasktonic/log/service#<n>.
type LogService struct {
	Path      string
	Service   string
	Arguments map[string]any
}

// RegisterLogService appends a new tasktonic/log/service#<n> entry.
func (f *Formula) RegisterLogService(service string, arguments map[string]any) string {
	path := f.s.Append(keyLogServices)
	sc := f.s.Group("formula:register-log-service", true)
	sc.Set(path+"/service", service)
	sc.Set(path+"/arguments", arguments)
	sc.Close()
	return path
}

// LogServices lists every registered log service in Store.Children order,
// which sorts the "#N" segments as strings: this is registration order for
// the first ten entries, after which "#10" sorts before "#2".
func (f *Formula) LogServices() []LogService {
	children := f.s.Children(keyLogServices)
	out := make([]LogService, 0, len(children))
	for _, child := range children {
		path := keyLogServices + "/" + child
		svc, _ := f.s.Get(path + "/service")
		args, _ := f.s.Get(path + "/arguments")
		entry := LogService{Path: path}
		if s, ok := svc.(string); ok {
			entry.Service = s
		}
		if a, ok := args.(map[string]any); ok {
			entry.Arguments = a
		}
		out = append(out, entry)
	}
	return out
}

// Merge applies a nested map of overrides (as produced by LoadFormulaFile)
// into the store, one Set per leaf value, flattening keys with "/".
func Merge(s *store.Store, overrides map[string]any) {
	sc := s.Group("formula:merge", true)
	defer sc.Close()
	mergeInto(sc, "", overrides)
}

func mergeInto(sc *store.Scope, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "/" + k
		}
		if nested, ok := v.(map[string]any); ok {
			mergeInto(sc, path, nested)
			continue
		}
		if nested, ok := v.(map[any]any); ok {
			conv := make(map[string]any, len(nested))
			for nk, nv := range nested {
				conv[fmt.Sprintf("%v", nk)] = nv
			}
			mergeInto(sc, path, conv)
			continue
		}
		sc.Set(path, v)
	}
}
