package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DumpName returns the file name of a device dump, e.g.
// CUBE-01_config_03_01_2024_JD.txt.
func DumpName(host, kind, initials string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.txt", sanitize(host), kind, t.Format(DateLayout), initials)
}

var unsafeName = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "..", "_")

func sanitize(s string) string {
	return unsafeName.Replace(s)
}

// WriteDump writes content to dir/name. When dir cannot be used it falls
// back to the working directory. It returns the path written.
func WriteDump(dir, name, content string) (string, error) {
	path := filepath.Join(dir, name)
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = os.WriteFile(path, []byte(content), 0o644)
	}
	if err != nil {
		log.Warnf("Failed to write %s: %v. Writing to the working directory instead.", path, err)
		path = name
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	log.Debugf("Wrote %s", path)
	return path, nil
}
