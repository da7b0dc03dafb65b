package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// CrashLogDir receives crash reports. main points it at the log directory.
var CrashLogDir = "./logs"

// runState is what a crash report says about the batch that was running.
type runState struct {
	mu       sync.Mutex
	runID    string
	mode     string
	inFlight map[string]time.Time
}

var currentRun = &runState{inFlight: make(map[string]time.Time)}

// SetRunContext records the batch a crash report belongs to.
func SetRunContext(runID, mode string) {
	currentRun.mu.Lock()
	defer currentRun.mu.Unlock()
	currentRun.runID = runID
	currentRun.mode = mode
}

// TrackPlugin marks a plugin as in flight until the returned func is called.
//
// Example:
//
//	defer common.TrackPlugin(p.Name)()
func TrackPlugin(name string) func() {
	currentRun.mu.Lock()
	currentRun.inFlight[name] = time.Now()
	currentRun.mu.Unlock()

	return func() {
		currentRun.mu.Lock()
		delete(currentRun.inFlight, name)
		currentRun.mu.Unlock()
	}
}

type inFlightPlugin struct {
	name    string
	started time.Time
}

func (r *runState) snapshot() (runID, mode string, plugins []inFlightPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, started := range r.inFlight {
		plugins = append(plugins, inFlightPlugin{name: name, started: started})
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].name < plugins[j].name })
	return r.runID, r.mode, plugins
}

// InFlightPlugins returns the tracked plugins, sorted by name.
func InFlightPlugins() []string {
	_, _, plugins := currentRun.snapshot()
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.name
	}
	return names
}

// InstallCrashHandler creates the crash directory. Pair it with a deferred
// RecoverWithCrashFile at the top of main.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// crashReport renders the report body.
func crashReport(panicVal any, stackTrace string, now time.Time) []byte {
	var report bytes.Buffer

	fmt.Fprintf(&report, "=== MODERNIZER CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&report, "Build: %s\n\n", CurrentBuild())

	runID, mode, plugins := currentRun.snapshot()
	fmt.Fprintf(&report, "=== RUN ===\n")
	if runID == "" {
		fmt.Fprintf(&report, "Run: none\n")
	} else {
		fmt.Fprintf(&report, "Run: %s\n", runID)
		fmt.Fprintf(&report, "Mode: %s\n", mode)
	}
	fmt.Fprintf(&report, "Plugins in flight: %d\n", len(plugins))
	for _, p := range plugins {
		fmt.Fprintf(&report, "  %s (%s)\n", p.name, now.Sub(p.started).Round(time.Second))
	}
	report.WriteString("\n")

	fmt.Fprintf(&report, "=== PANIC VALUE ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== STACK TRACE ===\n%s\n", stackTrace)
	fmt.Fprintf(&report, "=== ALL GOROUTINES ===\n%s\n", GetAllGoroutineStacks())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&report, "=== SYSTEM INFO ===\n")
	fmt.Fprintf(&report, "NumGoroutine: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&report, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&report, "Alloc: %d MB, Sys: %d MB, NumGC: %d\n\n", mem.Alloc/1024/1024, mem.Sys/1024/1024, mem.NumGC)

	report.WriteString("=== END CRASH REPORT ===\n")
	return report.Bytes()
}

// WriteCrashFile writes a crash report into CrashLogDir and returns its
// path. The report goes to stderr when the file cannot be written.
func WriteCrashFile(panicVal any, stackTrace string) string {
	now := time.Now()
	report := crashReport(panicVal, stackTrace, now)
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}

	// Unbuffered write and sync, the process exits right after
	file, err := os.OpenFile(crashPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash file: %v\n%s", err, report)
		return ""
	}
	if _, err := file.Write(report); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report)
	}
	file.Sync()
	file.Close()

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)
	if names := InFlightPlugins(); len(names) > 0 {
		fmt.Fprintf(os.Stderr, "Plugins in flight: %v\n", names)
	}
	return crashPath
}

// GetAllGoroutineStacks returns the stacks of all goroutines, capped at 64MB.
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash file for a panic and exits.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(1)
	}
}
