package hooks

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiscoverAgents searches for executable agents in configured paths and returns
// a map of agent name to full path. Search order:
// 1. ./agents/
// 2. $AUTOREVERT_HOME/agents/
// 3. /usr/local/lib/autorevert/agents/
func DiscoverAgents(paths []string) (map[string]string, error) {
	agents := make(map[string]string)

	// If no paths provided, use default search paths
	if len(paths) == 0 {
		paths = getDefaultAgentPaths()
	}

	for _, path := range paths {
		expandedPath := expandPath(path)

		info, err := os.Stat(expandedPath)
		if err != nil {
			// Path doesn't exist or isn't accessible, skip it
			continue
		}

		if !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(expandedPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			fullPath := filepath.Join(expandedPath, entry.Name())

			if isExecutable(fullPath) {
				// Use basename as agent name, don't overwrite if already found
				// (earlier paths have priority)
				name := entry.Name()
				if _, exists := agents[name]; !exists {
					agents[name] = fullPath
				}
			}
		}
	}

	return agents, nil
}

// getDefaultAgentPaths returns the default agent search paths in priority order
func getDefaultAgentPaths() []string {
	paths := []string{
		"./agents/",
	}

	if home := os.Getenv("AUTOREVERT_HOME"); home != "" {
		paths = append(paths, filepath.Join(home, "agents"))
	}

	paths = append(paths, "/usr/local/lib/autorevert/agents/")

	return paths
}

// expandPath expands environment variables and resolves relative paths
func expandPath(path string) string {
	expanded := os.ExpandEnv(path)

	if !filepath.IsAbs(expanded) {
		if abs, err := filepath.Abs(expanded); err == nil {
			return abs
		}
	}

	return expanded
}

// isExecutable checks if a file is executable
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Execute permission for user, group, or others
	mode := info.Mode()
	return mode&0o111 != 0
}

// FindAgent looks up an agent by name in the discovered agents map
func FindAgent(agents map[string]string, name string) (string, error) {
	path, exists := agents[name]
	if !exists {
		return "", fmt.Errorf("agent not found: %s", name)
	}
	return path, nil
}
