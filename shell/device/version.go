package device

import (
	"regexp"
	"strconv"
	"strings"
)

// DumpsysPackageCommand prints package manager state for the package named
// by the argument.
const DumpsysPackageCommand = "dumpsys package %s"

// Property names recorded by VersionInfoReceiver.
const (
	PropertyVersionCode = "version_code"
	PropertyVersionName = "version_name"
)

var versionCodePattern = regexp.MustCompile(`versionCode=(\d*)( minSdk=(\d*))?( targetSdk=(\d*))?$`)

// VersionInfo is the installed version of a package.
type VersionInfo struct {
	Code int    `json:"version_code"`
	Name string `json:"version_name"`
}

// VersionInfoReceiver extracts versionCode and versionName from the
// "Packages:" section of dumpsys package output. Other sections, such as
// the one listing shared libraries, are ignored.
type VersionInfoReceiver struct {
	info       *InfoReceiver
	inPackages bool
}

// NewVersionInfoReceiver returns an empty VersionInfoReceiver.
func NewVersionInfoReceiver() *VersionInfoReceiver {
	r := &VersionInfoReceiver{info: NewInfoReceiver()}
	r.info.AddParser(PropertyVersionCode, r.parseCode)
	r.info.AddParser(PropertyVersionName, r.parseName)
	return r
}

// AddLine tracks the current section and parses version lines.
func (r *VersionInfoReceiver) AddLine(line string) error {
	// Section headers are unindented, e.g. "Packages:".
	if strings.TrimSpace(line) != "" && line[0] != ' ' && line[0] != '\t' {
		r.inPackages = strings.EqualFold(strings.TrimSpace(line), "Packages:")
	}
	return r.info.AddLine(line)
}

// Flush does nothing.
func (r *VersionInfoReceiver) Flush() error { return nil }

// VersionInfo returns the parsed version. ok is false when no versionName
// was found.
func (r *VersionInfoReceiver) VersionInfo() (VersionInfo, bool) {
	name, ok := r.info.Value(PropertyVersionName)
	if !ok {
		return VersionInfo{}, false
	}
	info := VersionInfo{Name: name.(string)}
	if code, ok := r.info.Value(PropertyVersionCode); ok {
		info.Code = code.(int)
	}
	return info, true
}

func (r *VersionInfoReceiver) parseCode(line string) (any, bool) {
	if !r.inPackages {
		return nil, false
	}
	m := versionCodePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil {
		return nil, false
	}
	return code, true
}

func (r *VersionInfoReceiver) parseName(line string) (any, bool) {
	if !r.inPackages {
		return nil, false
	}
	name, ok := strings.CutPrefix(strings.TrimSpace(line), "versionName=")
	if !ok {
		return nil, false
	}
	return strings.TrimSpace(name), true
}
