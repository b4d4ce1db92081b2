package actions

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mb0/glob"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// ExpandPath expands a leading ~ and returns a cleaned absolute path.
func ExpandPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", errors.Wrapf(err, "could not expand %s", p)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve %s", expanded)
	}
	return abs, nil
}

// DesktopPath returns <home>/Desktop. The same layout is used on every OS.
func DesktopPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, "Desktop"), nil
}

func WorkingDirectory() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

// PathPolicy restricts where filesystem actions may write. An empty policy allows
// every path. Entries are directory roots (a target must be the root or below it)
// or glob patterns matched against the full target path.
type PathPolicy struct {
	Allowed []string
}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Check returns an error when target lies outside every allowed entry.
func (p PathPolicy) Check(target string) error {
	if len(p.Allowed) == 0 {
		return nil
	}

	target = filepath.Clean(target)
	for _, entry := range p.Allowed {
		if isGlobPattern(entry) {
			pattern, err := homedir.Expand(entry)
			if err != nil {
				continue
			}
			ok, err := glob.Match(pattern, target)
			if err == nil && ok {
				return nil
			}
			continue
		}

		root, err := ExpandPath(entry)
		if err != nil {
			continue
		}
		if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
			return nil
		}
	}

	return errors.Errorf("path %s is not within allowed paths", target)
}
