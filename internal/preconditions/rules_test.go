package preconditions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/models"
)

const legacyPOM = `<project>
  <parent>
    <groupId>org.jenkins-ci.plugins</groupId>
    <artifactId>plugin</artifactId>
    <version>1.580.1</version>
  </parent>
  <artifactId>legacy</artifactId>
  <version>1.0-SNAPSHOT</version>
  <url>http://wiki.jenkins-ci.org/display/JENKINS/Legacy+Plugin</url>
  <properties>
    <java.level>6</java.level>
  </properties>
  <repositories>
    <repository>
      <id>repo.jenkins-ci.org</id>
      <url>http://repo.jenkins-ci.org/public/</url>
    </repository>
  </repositories>
  <pluginRepositories>
    <pluginRepository>
      <id>repo.jenkins-ci.org</id>
      <url>http://repo.jenkins-ci.org/public/</url>
    </pluginRepository>
  </pluginRepositories>
</project>`

func writePOM(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte(content), 0o644))
	return dir
}

func readPOM(t *testing.T, dir string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	require.NoError(t, err)
	return string(raw)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []models.PreconditionKind
	}{
		{"missing descriptor", nil, []models.PreconditionKind{models.PreconditionMissingDescriptor}},
		{"clean descriptor", []byte(`<project><parent><version>4.88</version></parent></project>`), nil},
		{"legacy descriptor", []byte(legacyPOM), []models.PreconditionKind{
			models.PreconditionObsoleteLanguageLevel,
			models.PreconditionUnversionedParentRange,
			models.PreconditionInsecureRepositoryURL,
		}},
		{"java 8 is fine", []byte(`<project><properties><java.level>8</java.level></properties></project>`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.raw))
		})
	}
}

func TestRemediateLanguageLevel(t *testing.T) {
	dir := writePOM(t, `<project><properties><java.level>6</java.level></properties></project>`)
	r := NewRemediator(arbor.NewLogger())

	kinds, err := r.DetectDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []models.PreconditionKind{models.PreconditionObsoleteLanguageLevel}, kinds)

	open, err := r.RemediateAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, open)

	pom := readPOM(t, dir)
	assert.Contains(t, pom, "<java.level>8</java.level>")

	kinds, err = r.DetectDir(dir)
	require.NoError(t, err)
	assert.Empty(t, kinds)
}

func TestRemediateLanguageLevelNeedsLiteralMatch(t *testing.T) {
	dir := writePOM(t, "<project><properties><java.level> 7 </java.level></properties></project>")
	r := NewRemediator(arbor.NewLogger())

	open, err := r.RemediateAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []models.PreconditionKind{models.PreconditionObsoleteLanguageLevel}, open)
	assert.Contains(t, readPOM(t, dir), "<java.level> 7 </java.level>")
}

func TestRemediateAllLegacyDescriptor(t *testing.T) {
	dir := writePOM(t, legacyPOM)
	r := NewRemediator(arbor.NewLogger())

	open, err := r.RemediateAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, open)

	pom := readPOM(t, dir)
	assert.Contains(t, pom, "<version>4.88</version>")
	assert.Contains(t, pom, "<version>1.0-SNAPSHOT</version>", "project version untouched")
	assert.Equal(t, 2, strings.Count(pom, "<url>https://repo.jenkins-ci.org/public/</url>"))
	assert.Contains(t, pom, "<url>http://wiki.jenkins-ci.org", "non-repository urls untouched")
}

func TestRemediateAllMissingDescriptor(t *testing.T) {
	r := NewRemediator(arbor.NewLogger())
	open, err := r.RemediateAll(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []models.PreconditionKind{models.PreconditionMissingDescriptor}, open)
}

func TestRulesTable(t *testing.T) {
	rs := Rules()
	require.Len(t, rs, 4)
	assert.Equal(t, models.PreconditionMissingDescriptor, rs[0].Kind)
	assert.Nil(t, rs[0].Remediate)
	for _, r := range rs[1:] {
		assert.NotNil(t, r.Remediate, r.Kind)
		assert.NotEmpty(t, r.Message)
	}
}
