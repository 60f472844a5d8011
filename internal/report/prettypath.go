package report

import "strings"

// PathPrettifier abbreviates the repository root in paths shown to the
// user, so output lines stay readable across hosts with long overlay
// checkout paths.
type PathPrettifier struct {
	overlayRoot string
}

// NewPathPrettifier creates a prettifier for the given overlay root.
// An empty root disables abbreviation.
func NewPathPrettifier(overlayRoot string) *PathPrettifier {
	return &PathPrettifier{overlayRoot: strings.TrimSuffix(overlayRoot, "/")}
}

// Pretty rewrites a path under the overlay root as $overlay/...
func (p *PathPrettifier) Pretty(path string) string {
	if p.overlayRoot == "" {
		return path
	}
	if path == p.overlayRoot {
		return "$overlay"
	}
	if strings.HasPrefix(path, p.overlayRoot+"/") {
		return "$overlay" + path[len(p.overlayRoot):]
	}
	return path
}
