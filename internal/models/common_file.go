package models

import (
	"path"
	"strings"
)

// CommonFile is a well-known, conventionally located repository file whose
// presence is itself a fact about the repository.
type CommonFile string

const (
	CommonFileJenkinsfile     CommonFile = "JENKINSFILE"
	CommonFilePOM             CommonFile = "POM"
	CommonFileLicense         CommonFile = "LICENSE"
	CommonFileReadme          CommonFile = "README"
	CommonFileContributing    CommonFile = "CONTRIBUTING"
	CommonFileCodeOwners      CommonFile = "CODEOWNERS"
	CommonFileGitIgnore       CommonFile = "GITIGNORE"
	CommonFileDependabot      CommonFile = "DEPENDABOT"
	CommonFileRenovate        CommonFile = "RENOVATE"
	CommonFileReleaseDrafter  CommonFile = "RELEASE_DRAFTER"
	CommonFileCDWorkflow      CommonFile = "CD_WORKFLOW"
	CommonFileSecurityScan    CommonFile = "JENKINS_SECURITY_SCAN"
	CommonFileMavenExtensions CommonFile = "MAVEN_EXTENSIONS"
	CommonFileMavenConfig     CommonFile = "MAVEN_CONFIG"
	CommonFileIndexJelly      CommonFile = "INDEX_JELLY"
	CommonFileChangelog       CommonFile = "CHANGELOG"
)

// commonFiles is the fixed catalog. The first path of each entry is canonical.
var commonFiles = []struct {
	kind  CommonFile
	paths []string
}{
	{CommonFileJenkinsfile, []string{"Jenkinsfile"}},
	{CommonFilePOM, []string{"pom.xml"}},
	{CommonFileLicense, []string{"LICENSE.md", "LICENSE.adoc", "LICENSE.txt", "LICENSE"}},
	{CommonFileReadme, []string{"README.md", "README.adoc"}},
	{CommonFileContributing, []string{"CONTRIBUTING.md", "CONTRIBUTING.adoc", "docs/CONTRIBUTING.md"}},
	{CommonFileCodeOwners, []string{".github/CODEOWNERS", "CODEOWNERS", "docs/CODEOWNERS"}},
	{CommonFileGitIgnore, []string{".gitignore"}},
	{CommonFileDependabot, []string{".github/dependabot.yml", ".github/dependabot.yaml"}},
	{CommonFileRenovate, []string{"renovate.json", ".github/renovate.json"}},
	{CommonFileReleaseDrafter, []string{".github/release-drafter.yml", ".github/release-drafter.yaml"}},
	{CommonFileCDWorkflow, []string{".github/workflows/cd.yaml", ".github/workflows/cd.yml"}},
	{CommonFileSecurityScan, []string{".github/workflows/jenkins-security-scan.yml", ".github/workflows/jenkins-security-scan.yaml"}},
	{CommonFileMavenExtensions, []string{".mvn/extensions.xml"}},
	{CommonFileMavenConfig, []string{".mvn/maven.config"}},
	{CommonFileIndexJelly, []string{"src/main/resources/index.jelly"}},
	{CommonFileChangelog, []string{"CHANGELOG.md", "CHANGELOG.adoc"}},
}

// AllCommonFiles returns every catalog kind in table order.
func AllCommonFiles() []CommonFile {
	out := make([]CommonFile, 0, len(commonFiles))
	for _, e := range commonFiles {
		out = append(out, e.kind)
	}
	return out
}

// ResolveCommonFile maps a repository-relative path (any alias) to its kind.
func ResolveCommonFile(p string) (CommonFile, bool) {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
	for _, e := range commonFiles {
		for _, alias := range e.paths {
			if alias == p {
				return e.kind, true
			}
		}
	}
	return "", false
}

// CanonicalPath returns the path used when generating the file.
func CanonicalPath(kind CommonFile) string {
	for _, e := range commonFiles {
		if e.kind == kind {
			return e.paths[0]
		}
	}
	return ""
}

// CommonFileAliases returns every accepted path for kind.
func CommonFileAliases(kind CommonFile) []string {
	for _, e := range commonFiles {
		if e.kind == kind {
			return append([]string(nil), e.paths...)
		}
	}
	return nil
}
