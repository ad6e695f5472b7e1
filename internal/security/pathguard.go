package security

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrPathDenied is returned when a resolved path matches a blocked name,
// subpath, file-name substring, or one of the exact blocked absolute paths.
var ErrPathDenied = errors.New("path denied by guard policy")

// blockedDirNames are directory components that are never readable or
// writable by a tool, regardless of where they appear in a path.
var blockedDirNames = map[string]bool{
	".ssh":    true,
	".aws":    true,
	".gnupg":  true,
	".kube":   true,
	".docker": true,
}

// blockedFileSubstrings flag filenames that commonly carry secrets even
// outside one of the blocked directories above.
var blockedFileSubstrings = []string{
	"id_rsa",
	"id_ed25519",
	".pem",
	".pfx",
	"credentials.json",
	".env",
}

// blockedAbsolutePaths are exact system paths denied outright.
var blockedAbsolutePaths = []string{
	"/etc/shadow",
	"/etc/sudoers",
}

// PathGuard rejects filesystem access to a fixed set of sensitive locations.
// The files tools' Resolver applies it after its own workspace-containment
// check. It is
// deliberately simpler than a containment check: a path can be inside the
// tool's allowed workspace and still be denied here (e.g. a workspace that
// happens to contain a vendored .ssh directory).
type PathGuard struct{}

// NewPathGuard constructs a guard with the built-in denylist. The list is
// not currently configurable — every session shares the same policy.
func NewPathGuard() *PathGuard {
	return &PathGuard{}
}

// Check returns ErrPathDenied if path (absolute or relative) resolves to a
// blocked location. It cleans the path first so "../../etc/shadow"-style
// traversal is caught the same way a literal "/etc/shadow" would be.
func (g *PathGuard) Check(path string) error {
	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return err
	}

	for _, blocked := range blockedAbsolutePaths {
		if abs == blocked {
			return ErrPathDenied
		}
	}

	parts := strings.Split(filepath.ToSlash(abs), "/")
	for i, part := range parts {
		if blockedDirNames[part] {
			return ErrPathDenied
		}
		// Two-component subpath rule: a blocked name followed immediately
		// by any child is denied even if the directory name itself isn't
		// in blockedDirNames (e.g. "secrets/private").
		if part == "secrets" && i+1 < len(parts) {
			return ErrPathDenied
		}
	}

	base := filepath.Base(abs)
	for _, substr := range blockedFileSubstrings {
		if strings.Contains(strings.ToLower(base), substr) {
			return ErrPathDenied
		}
	}

	return nil
}
