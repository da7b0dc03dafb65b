package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/orchestrator"
)

func testSummary() *orchestrator.Summary {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &orchestrator.Summary{
		RunID:      "run_1",
		Mode:       orchestrator.ModeRun,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Results: []*models.Result{
			{
				Plugin:           "git",
				Outcome:          models.OutcomeSuccess,
				State:            models.StatePublished,
				JDK:              17,
				ChangedFiles:     []string{"Jenkinsfile", "pom.xml"},
				ChangeRequestURL: "https://github.com/jenkinsci/git-plugin/pull/1",
				Warnings:         []string{"verification failed with JDK 17\n[ERROR] tests"},
			},
			nil,
			{
				Plugin:  "mailer",
				Outcome: models.OutcomeFailed,
				State:   models.StateSkippedWithErrors,
				Errors:  []string{"precondition failed: a|b"},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(testSummary())

	assert.Contains(t, md, "# Modernizer run run_1")
	assert.Contains(t, md, "took 1m30s")
	assert.Contains(t, md, "| success | 1 |")
	assert.Contains(t, md, "| failed | 1 |")
	assert.NotContains(t, md, "| skipped |")
	assert.Contains(t, md, "| git | success | "+string(models.StatePublished)+" | 17 | https://github.com/jenkinsci/git-plugin/pull/1 |")
	assert.Contains(t, md, "| mailer | failed | "+string(models.StateSkippedWithErrors)+" | - | - |")
	assert.Contains(t, md, "- **Changed files**: `Jenkinsfile`, `pom.xml`")
	assert.Contains(t, md, "- **Warning**: verification failed with JDK 17\n")
	assert.NotContains(t, md, "[ERROR] tests")
	assert.Contains(t, md, `- **Error**: precondition failed: a|b`)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"out/report.md", FormatMarkdown, false},
		{"report.MARKDOWN", FormatMarkdown, false},
		{"report.html", FormatHTML, false},
		{"report.htm", FormatHTML, false},
		{"report.pdf", FormatPDF, false},
		{"report.txt", "", true},
		{"report", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFor(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTMLRendersTables(t *testing.T) {
	out, err := HTML(Markdown(testSummary()), "Run <1>")
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<title>Run &lt;1&gt;</title>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>git</td>")
	assert.Contains(t, html, "<code>Jenkinsfile</code>")
}

func TestWrite(t *testing.T) {
	logger := arbor.NewLogger()
	dir := t.TempDir()

	for _, name := range []string{"report.md", "nested/report.html", "report.pdf"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Write(path, testSummary(), logger))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NotEmpty(t, raw)
			if filepath.Ext(name) == ".pdf" {
				assert.Equal(t, "%PDF", string(raw[:4]))
			}
		})
	}

	assert.Error(t, Write(filepath.Join(dir, "report.txt"), testSummary(), logger))
}
