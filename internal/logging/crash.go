package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// CrashReport is written to disk when a pipeline goroutine panics.
type CrashReport struct {
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Component    string            `json:"component"`
	GOOS         string            `json:"goos"`
	GOARCH       string            `json:"goarch"`
	NumGoroutine int               `json:"num_goroutine"`
	PanicValue   string            `json:"panic_value"`
	StackTrace   string            `json:"stack_trace"`
	Context      map[string]string `json:"context,omitempty"`
}

// CrashHandler recovers panics, records a report, and hands control back to
// the caller through OnCrash so the input device can be released.
type CrashHandler struct {
	mu        sync.Mutex
	dir       string
	version   string
	component string
	logger    *Logger
	onCrash   func(CrashReport)
}

// NewCrashHandler creates a handler writing reports under dir.
func NewCrashHandler(dir, component string, logger *Logger) *CrashHandler {
	if logger == nil {
		logger = Discard()
	}
	return &CrashHandler{
		dir:       dir,
		component: component,
		logger:    logger,
	}
}

// SetVersion records the binary version in future reports.
func (h *CrashHandler) SetVersion(version string) {
	h.mu.Lock()
	h.version = version
	h.mu.Unlock()
}

// OnCrash registers a callback run after a report is written.
func (h *CrashHandler) OnCrash(fn func(CrashReport)) {
	h.mu.Lock()
	h.onCrash = fn
	h.mu.Unlock()
}

// Guard runs fn and converts a panic into a crash report. It returns an error
// describing the panic, or nil if fn returned normally.
func (h *CrashHandler) Guard(contextInfo map[string]string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report := h.HandlePanic(r, contextInfo)
			err = fmt.Errorf("panic in %s: %s", report.Component, report.PanicValue)
		}
	}()
	fn()
	return nil
}

// HandlePanic builds and persists a report for panicValue.
func (h *CrashHandler) HandlePanic(panicValue any, contextInfo map[string]string) CrashReport {
	h.mu.Lock()
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Component:    h.component,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprintf("%v", panicValue),
		StackTrace:   string(debug.Stack()),
		Context:      contextInfo,
	}
	onCrash := h.onCrash
	h.mu.Unlock()

	path, err := h.write(report)
	if err != nil {
		h.logger.Error("write crash report", "error", err)
	}
	h.logger.Error("recovered panic", "panic", report.PanicValue, "report", path)

	if onCrash != nil {
		onCrash(report)
	}
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}

	name := fmt.Sprintf("crash-%s-%s.json", report.Component, report.Timestamp.Format("20060102-150405.000000"))
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns the stored crash reports, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	reports := make([]CrashReport, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var r CrashReport
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}
