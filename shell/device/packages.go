package device

import (
	"strings"

	"github.com/pithecene-io/adbshell/shell"
)

// ListPackagesCommand lists installed packages with their APK paths.
const ListPackagesCommand = "pm list packages -f"

const packagePrefix = "package:"

// PackageReceiver parses "pm list packages" output on Flush.
//
// Lines have the form "package:<path>=<name>" or "package:<name>".
type PackageReceiver struct {
	lines    *shell.LineCollector
	packages map[string]string
}

// NewPackageReceiver returns an empty PackageReceiver.
func NewPackageReceiver() *PackageReceiver {
	return &PackageReceiver{
		lines:    shell.NewLineCollector(shell.TrimLines(true)),
		packages: make(map[string]string),
	}
}

// AddLine buffers line until Flush.
func (r *PackageReceiver) AddLine(line string) error {
	return r.lines.AddLine(line)
}

// Flush parses the buffered lines.
func (r *PackageReceiver) Flush() error {
	clear(r.packages)
	for _, line := range r.lines.Lines() {
		pkg, ok := strings.CutPrefix(line, packagePrefix)
		if !ok {
			continue
		}
		// APK paths may contain '=', package names cannot.
		if i := strings.LastIndexByte(pkg, '='); i >= 0 {
			r.packages[pkg[i+1:]] = pkg[:i]
		} else {
			r.packages[pkg] = ""
		}
	}
	return nil
}

// Packages maps package name to APK path. The path is empty when the
// listing did not include it.
func (r *PackageReceiver) Packages() map[string]string {
	out := make(map[string]string, len(r.packages))
	for k, v := range r.packages {
		out[k] = v
	}
	return out
}
