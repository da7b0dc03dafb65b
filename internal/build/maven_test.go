package build

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/ladder"
)

// fakeMaven writes a shell script that records its arguments and JAVA_HOME,
// creates the resolved descriptor when asked, and fails on "verify".
func fakeMaven(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for mvn")
	}
	script := `#!/bin/sh
echo "$@" >> calls.log
echo "JAVA_HOME=$JAVA_HOME" >> calls.log
for arg in "$@"; do
  case "$arg" in
    -Doutput=*)
      out="${arg#-Doutput=}"
      mkdir -p "$(dirname "$out")"
      echo "<project/>" > "$out"
      ;;
    verify)
      echo "BUILD FAILURE"
      exit 1
      ;;
  esac
done
echo "BUILD SUCCESS"
`
	path := filepath.Join(t.TempDir(), "mvn")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func readCalls(t *testing.T, dir string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "calls.log"))
	require.NoError(t, err)
	return string(raw)
}

func TestMavenRunnerCompileWritesResolvedDescriptor(t *testing.T) {
	dir := t.TempDir()
	r := NewMavenRunner(Options{
		Executable: fakeMaven(t),
		JavaHomes:  map[int]string{17: "/opt/jdk-17"},
	}, arbor.NewLogger())

	res, err := r.Compile(context.Background(), dir, ladder.Java17)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "BUILD SUCCESS")
	assert.FileExists(t, filepath.Join(dir, ResolvedDescriptor))

	calls := readCalls(t, dir)
	assert.Contains(t, calls, "-B -ntp")
	assert.Contains(t, calls, "help:effective-pom -Doutput="+ResolvedDescriptor+" compile")
	assert.Contains(t, calls, "JAVA_HOME=/opt/jdk-17")
}

func TestMavenRunnerFailedBuildIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	r := NewMavenRunner(Options{Executable: fakeMaven(t)}, arbor.NewLogger())

	res, err := r.Verify(context.Background(), dir, ladder.Java21)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "BUILD FAILURE")
}

func TestMavenRunnerVerifyWritesResolvedDescriptor(t *testing.T) {
	dir := t.TempDir()
	r := NewMavenRunner(Options{Executable: fakeMaven(t)}, arbor.NewLogger())

	_, err := r.Clean(context.Background(), dir, ladder.Java17)
	require.NoError(t, err)
	_, err = r.Verify(context.Background(), dir, ladder.Java17)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, ResolvedDescriptor))
	assert.Contains(t, readCalls(t, dir), "help:effective-pom -Doutput="+ResolvedDescriptor+" verify")
}

func TestMavenRunnerGoals(t *testing.T) {
	tests := []struct {
		name string
		run  func(*MavenRunner, string) error
		want string
	}{
		{"clean", func(r *MavenRunner, dir string) error {
			_, err := r.Clean(context.Background(), dir, ladder.Java11)
			return err
		}, "clean"},
		{"format", func(r *MavenRunner, dir string) error {
			_, err := r.Format(context.Background(), dir, ladder.Java11)
			return err
		}, "spotless:apply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			r := NewMavenRunner(Options{
				Executable: fakeMaven(t),
				Offline:    true,
				ExtraArgs:  []string{"-Dquiet=true"},
			}, arbor.NewLogger())
			require.NoError(t, tt.run(r, dir))

			first := strings.SplitN(readCalls(t, dir), "\n", 2)[0]
			assert.Equal(t, "-B -ntp -Dstyle.color=never -o -Dquiet=true "+tt.want, first)
		})
	}
}

func TestMavenRunnerMissingExecutable(t *testing.T) {
	r := NewMavenRunner(Options{Executable: filepath.Join(t.TempDir(), "missing-mvn")}, arbor.NewLogger())
	_, err := r.Compile(context.Background(), t.TempDir(), ladder.Java17)
	assert.Error(t, err)
}

func TestMavenRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for mvn")
	}
	slow := filepath.Join(t.TempDir(), "mvn")
	require.NoError(t, os.WriteFile(slow, []byte("#!/bin/sh\nexec sleep 5\n"), 0o755))

	r := NewMavenRunner(Options{Executable: slow, Timeout: 50 * time.Millisecond}, arbor.NewLogger())
	_, err := r.Verify(context.Background(), t.TempDir(), ladder.Java17)
	assert.Error(t, err)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	var b tailBuffer
	_, _ = b.Write([]byte(strings.Repeat("a", maxOutput)))
	_, _ = b.Write([]byte("end"))
	assert.Len(t, b.String(), maxOutput)
	assert.True(t, strings.HasSuffix(b.String(), "end"))
}

func TestParseJavaHomes(t *testing.T) {
	got, err := ParseJavaHomes(map[string]string{"17": "/opt/17", "jdk21": "/opt/21", "1.8": "/opt/8"})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{8: "/opt/8", 17: "/opt/17", 21: "/opt/21"}, got)

	_, err = ParseJavaHomes(map[string]string{"9": "/opt/9"})
	assert.Error(t, err)
}
