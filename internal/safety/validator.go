package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator decides whether a directory may be emptied. A directory is
// refused when it is, or contains, a protected path, and when allowed roots
// are configured and it lies outside all of them.
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
	// Home may not be emptied itself; directories below it may.
	Home string
}

// NewValidator creates a validator with allowed roots and optional additional
// protected paths. An empty allowed list puts no restriction on location.
func NewValidator(allowed []string, extraProtected []string) *Validator {
	v := &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(extraProtected),
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		v.Home = filepath.Clean(home)
	}
	return v
}

// ValidateRoot is the single check run before a directory tree is emptied.
// It returns one of the package's sentinel errors on violation.
func (v *Validator) ValidateRoot(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if DetectTraversal(path) {
		return ErrTraversal
	}

	if v.isProtected(p) {
		return ErrProtectedPath
	}

	if len(v.AllowedRoots) > 0 && !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// a missing root is reported by the walk itself
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	resolved = filepath.Clean(resolved)
	if resolved == p {
		return nil
	}
	if v.isProtected(resolved) {
		return ErrSymlinkEscape
	}
	if len(v.AllowedRoots) > 0 && !IsWithinAllowedRoots(resolved, resolveRoots(v.AllowedRoots)) {
		return ErrSymlinkEscape
	}
	return nil
}

func (v *Validator) isProtected(p string) bool {
	if v.Home != "" && (p == v.Home || hasPathPrefix(v.Home, p)) {
		return true
	}
	return IsProtectedPath(p, v.ProtectedPaths) || ContainsProtected(p, v.ProtectedPaths)
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// IsProtectedPath checks if path is a protected path or lies below one.
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	if isFilesystemRoot(p) {
		return true
	}

	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// ContainsProtected reports whether emptying path would reach into a
// protected path beneath it.
func ContainsProtected(path string, protected []string) bool {
	p := filepath.Clean(path)
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if isFilesystemRoot(prot) {
			continue
		}
		if hasPathPrefix(prot, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether path equals prefix or lies below it.
// The filesystem root only prefixes itself so "/" in a protected list does
// not swallow every path.
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if isFilesystemRoot(prefix) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func isFilesystemRoot(p string) bool {
	return p == filepath.VolumeName(p)+string(os.PathSeparator)
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// resolveRoots returns roots plus their symlink-resolved forms, so a root
// reached through a link (/var -> /private/var) still matches.
func resolveRoots(roots []string) []string {
	out := append([]string(nil), roots...)
	for _, r := range roots {
		if resolved, err := filepath.EvalSymlinks(r); err == nil && resolved != r {
			out = append(out, filepath.Clean(resolved))
		}
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/var/lib",
		"/etc/tidyfs",
	}
	return append(base, extra...)
}
