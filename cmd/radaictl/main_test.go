package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/radai/internal/ai/mock"
	"github.com/DukeRupert/radai/internal/email"
	"github.com/DukeRupert/radai/internal/service"
	"github.com/DukeRupert/radai/internal/storage"
	"github.com/DukeRupert/radai/internal/store"
)

type nopNotifier struct{ sent int }

func (n *nopNotifier) SendReportNotification(ctx context.Context, _ email.Notification) error {
	n.sent++
	return nil
}

func (n *nopNotifier) Name() string { return "nop" }

// memoryFactory shares one in-memory service across command runs.
func memoryFactory(t *testing.T) (appFactory, *nopNotifier) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := storage.NewMemoryStorage()
	notifier := &nopNotifier{}
	svc := service.NewReportService(mock.New(logger), notifier, store.New(mem, logger), mem, service.NewImageNormalizer(0), logger)

	return func(ctx context.Context, _ *slog.Logger) (service.ReportService, func() error, error) {
		return svc, nil, nil
	}, notifier
}

func execute(t *testing.T, factory appFactory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(factory)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chest.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 16, 16))))
	return path
}

var reportLine = regexp.MustCompile(`Report:\s+(\S+)`)

func TestCLI_FullLifecycle(t *testing.T) {
	factory, notifier := memoryFactory(t)

	out, err := execute(t, factory, "analyze", writePNG(t), "--name", "Jane Doe", "--email", "jane@example.com")
	require.NoError(t, err)
	m := reportLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Contains(t, out, "Status:      analyzed")

	out, err = execute(t, factory, "approve", id)
	require.NoError(t, err)
	assert.Equal(t, "Report "+id+" is approved\n", out)

	out, err = execute(t, factory, "notify", id)
	require.NoError(t, err)
	assert.Equal(t, "Report "+id+" is notified\n", out)
	assert.Equal(t, 1, notifier.sent)

	out, err = execute(t, factory, "summary", id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "RADIOLOGY REPORT SUMMARY\n"))

	dir := t.TempDir()
	out, err = execute(t, factory, "export", id, "--variant", "full", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "Radiology_Report_Jane_Doe_"+id[:8]+".pdf"))

	data, err := os.ReadFile(filepath.Join(dir, "Radiology_Report_Jane_Doe_"+id[:8]+".pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestCLI_ShowJSON(t *testing.T) {
	factory, _ := memoryFactory(t)

	out, err := execute(t, factory, "analyze", writePNG(t), "--name", "Jane Doe", "--email", "jane@example.com", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "analyzed"`)
}

func TestCLI_Errors(t *testing.T) {
	factory, _ := memoryFactory(t)

	_, err := execute(t, factory, "show", "1_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")

	_, err = execute(t, factory, "analyze", writePNG(t), "--name", "Jane Doe", "--email", "not-an-email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patient_email")

	_, err = execute(t, factory, "analyze", writePNG(t), "--email", "jane@example.com")
	require.Error(t, err, "--name is required")

	_, err = execute(t, factory, "export", "1_missing", "--variant", "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")

	text := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("not an image"), 0o600))
	_, err = execute(t, factory, "analyze", text, "--name", "Jane Doe", "--email", "jane@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image type")
}

func TestCLI_ApproveTwiceConflicts(t *testing.T) {
	factory, _ := memoryFactory(t)

	out, err := execute(t, factory, "analyze", writePNG(t), "--name", "Jane Doe", "--email", "jane@example.com")
	require.NoError(t, err)
	id := reportLine.FindStringSubmatch(out)[1]

	_, err = execute(t, factory, "approve", id)
	require.NoError(t, err)
	_, err = execute(t, factory, "approve", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")
}

func TestCLI_Delete(t *testing.T) {
	factory, _ := memoryFactory(t)

	out, err := execute(t, factory, "analyze", writePNG(t), "--name", "Jane Doe", "--email", "jane@example.com")
	require.NoError(t, err)
	id := reportLine.FindStringSubmatch(out)[1]

	out, err = execute(t, factory, "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "Report "+id+" deleted\n", out)

	_, err = execute(t, factory, "show", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}
