package shared

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// PIDReadFromFile reads the pid stored in the supplied file.
func PIDReadFromFile(pidFile string, fs afero.Fs) (int, error) {
	file, err := fs.Open(pidFile)
	if err != nil {
		return -1, fmt.Errorf("opening pid file %s: %w", pidFile, err)
	}

	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		return -1, fmt.Errorf("reading pid file %s: %w", pidFile, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(buf)))
	if err != nil {
		return -1, fmt.Errorf("parsing pid from %s: %w", pidFile, err)
	}

	return pid, nil
}

// PIDWriteToFile writes the pid to the supplied file.
func PIDWriteToFile(pid int, pidFile string, fs afero.Fs) error {
	file, err := fs.OpenFile(pidFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening pid file %s: %w", pidFile, err)
	}

	defer file.Close()

	if _, err := file.Write([]byte(strconv.Itoa(pid))); err != nil {
		return fmt.Errorf("writing pid to file %s: %w", pidFile, err)
	}

	return nil
}
