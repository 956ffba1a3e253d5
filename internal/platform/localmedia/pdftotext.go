package localmedia

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// PopplerTools wraps the poppler-utils binaries (pdftotext, pdfinfo).
// Both must be on PATH in the worker runtime; Available reports whether they are.
type PopplerTools struct {
	log *logger.Logger

	pdftotextPath string
	pdfinfoPath   string
	timeout       time.Duration
}

func New(log *logger.Logger) *PopplerTools {
	return &PopplerTools{
		log:           log.With("service", "PopplerTools"),
		pdftotextPath: "pdftotext",
		pdfinfoPath:   "pdfinfo",
		timeout:       2 * time.Minute,
	}
}

func (m *PopplerTools) Available() bool {
	_, err := exec.LookPath(m.pdftotextPath)
	return err == nil
}

func (m *PopplerTools) Name() string { return "pdftotext" }

// ParsePDF runs `pdftotext -layout -enc UTF-8 <path> -` and returns stdout.
func (m *PopplerTools) ParsePDF(ctx context.Context, path string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if path == "" {
		return "", fmt.Errorf("path required")
	}
	if _, err := exec.LookPath(m.pdftotextPath); err != nil {
		return "", fmt.Errorf("missing required binary %q in PATH: %w", m.pdftotextPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.pdftotextPath, "-layout", "-enc", "UTF-8", path, "-")
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("pdftotext failed: %w; stderr=%s", err, stderr)
	}
	return strings.TrimSpace(strings.ReplaceAll(string(out), "\f", "\n")), nil
}

func (m *PopplerTools) CountPDFPages(ctx context.Context, pdfPath string) (int, error) {
	ctx = ctxutil.Default(ctx)
	if pdfPath == "" {
		return 0, fmt.Errorf("pdfPath required")
	}
	if _, err := exec.LookPath(m.pdfinfoPath); err != nil {
		return 0, fmt.Errorf("pdfinfo not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, m.pdfinfoPath, pdfPath).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w; out=%s", err, string(out))
	}
	return parsePageCount(string(out))
}

func parsePageCount(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || n <= 0 {
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}
