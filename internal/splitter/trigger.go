package splitter

import (
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/jittakal/csvsplit/internal/errors"
)

const triggerShell = "sh"

// ExpandTrigger substitutes the finished file into a trigger command
// template: {} is the absolute path, {/} the file basename, {rows} the
// record count.
func ExpandTrigger(template, path string, rows int) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	s := strings.ReplaceAll(template, "{}", abs)
	s = strings.ReplaceAll(s, "{/}", filepath.Base(path))
	return strings.ReplaceAll(s, "{rows}", strconv.Itoa(rows))
}

// RunTrigger expands the template for the finished file and executes it
// through the shell. The finished file is already on disk when the
// trigger runs, so a failure is returned for reporting but callers must
// not let it abort the pipeline.
func RunTrigger(template, path string, rows int) error {
	cmdstr := ExpandTrigger(template, path, rows)
	out, err := exec.Command(triggerShell, "-c", cmdstr).CombinedOutput()
	if err != nil {
		return &apperrors.TriggerError{Command: cmdstr, Output: string(out), Err: err}
	}
	return nil
}

// fireTrigger runs the trigger when configured, logging the outcome.
func fireTrigger(template, path string, rows int, logger *slog.Logger, metrics MetricsCollector) {
	if template == "" {
		return
	}
	if err := RunTrigger(template, path, rows); err != nil {
		logger.Error("trigger command failed", "path", path, "rows", rows, "error", err)
		if metrics != nil {
			metrics.IncTriggerRuns("failure")
		}
		return
	}
	logger.Debug("trigger command succeeded", "path", path, "rows", rows)
	if metrics != nil {
		metrics.IncTriggerRuns("success")
	}
}
