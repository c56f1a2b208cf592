package agent

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// extraBinDirs returns install locations the agent binary commonly lands in
// but which are often missing from the PATH of a GUI-launched parent process.
func extraBinDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	dirs := []string{
		"/usr/local/bin",
		"/opt/homebrew/bin",
	}
	if home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, ".claude", "local"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, "n", "bin"),
		)
	}
	return dirs
}

// runEnv returns the caller's environment with PATH extended across common
// install locations and color output disabled for clean line parsing.
func runEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+1)
	foundPath := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			out = append(out, "PATH="+extendPath(strings.TrimPrefix(kv, "PATH=")))
			foundPath = true
			continue
		}
		out = append(out, kv)
	}
	if !foundPath {
		out = append(out, "PATH="+extendPath(""))
	}
	out = append(out, "NO_COLOR=1")
	return out
}

// lookBinary resolves the agent binary, falling back to the extra install
// locations when the inherited PATH does not contain it.
func lookBinary(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err == nil {
		return path, nil
	}
	if strings.ContainsRune(binary, os.PathSeparator) {
		return "", err
	}
	for _, dir := range extraBinDirs() {
		candidate := filepath.Join(dir, binary)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", err
}

// extendPath appends any missing extraBinDirs to a PATH value.
func extendPath(path string) string {
	existing := make(map[string]bool)
	for _, dir := range filepath.SplitList(path) {
		existing[dir] = true
	}
	parts := []string{}
	if path != "" {
		parts = append(parts, path)
	}
	for _, dir := range extraBinDirs() {
		if !existing[dir] {
			parts = append(parts, dir)
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
