//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// FindRunningProcesses returns the executables from names that currently have
// a live process, in the order of names. The current process is ignored.
func FindRunningProcesses(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	running := make(map[string]struct{}, len(processList))
	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		running[normalizeExecutable(process.Executable())] = struct{}{}
	}

	var found []string

	for _, name := range names {
		if _, ok := running[normalizeExecutable(name)]; ok {
			found = append(found, name)
		}
	}

	return found, nil
}

// normalizeExecutable strips folders and, on Windows, letter case.
func normalizeExecutable(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		name = strings.ToLower(name)
	}

	return name
}
