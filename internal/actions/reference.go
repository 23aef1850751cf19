package actions

import (
	"errors"
	"fmt"
	"strings"
)

// ActionReference identifies an action and the version specifier to pin it to.
type ActionReference struct {
	Owner          string
	Repo           string
	Path           string // Subdirectory path for composite actions (e.g., "upload-sarif")
	PinnedVersion  string // Specifier to resolve: tag, branch name, or commit hash
	CurrentVersion string // Version text as found at the call site, carried through unchanged
}

// NewActionReference creates a reference with CurrentVersion equal to the pinned version.
func NewActionReference(owner, repo, path, version string) ActionReference {
	return ActionReference{
		Owner:          owner,
		Repo:           repo,
		Path:           path,
		PinnedVersion:  version,
		CurrentVersion: version,
	}
}

// ParseActionUses parses "owner/repo@ref" or "owner/repo/path@ref" into an ActionReference.
// For composite actions like "github/codeql-action/upload-sarif@v2", the repo
// is extracted as "codeql-action" and path as "upload-sarif".
func ParseActionUses(uses string) (ActionReference, error) {
	atIdx := strings.LastIndex(uses, "@")
	if atIdx == -1 {
		return ActionReference{}, fmt.Errorf("invalid action format: %s", uses)
	}

	actionPath := uses[:atIdx]
	ref := uses[atIdx+1:]
	if ref == "" {
		return ActionReference{}, fmt.Errorf("missing version in action: %s", uses)
	}

	owner, rest, ok := strings.Cut(actionPath, "/")
	if !ok || owner == "" || rest == "" {
		return ActionReference{}, fmt.Errorf("invalid action path: %s", actionPath)
	}

	repo, path, _ := strings.Cut(rest, "/")
	if repo == "" {
		return ActionReference{}, fmt.Errorf("invalid action path: %s", actionPath)
	}

	return NewActionReference(owner, repo, path, ref), nil
}

// Name returns "owner/repo" or "owner/repo/path".
func (r ActionReference) Name() string {
	if r.Path == "" {
		return r.Owner + "/" + r.Repo
	}
	return r.Owner + "/" + r.Repo + "/" + r.Path
}

// String returns the reference in workflow "uses" form.
func (r ActionReference) String() string {
	return r.Name() + "@" + r.PinnedVersion
}

// Key returns the resolution key for the reference.
func (r ActionReference) Key() ResolutionKey {
	return ResolutionKey{
		Owner:   r.Owner,
		Repo:    r.Repo,
		Path:    r.Path,
		Version: r.PinnedVersion,
	}
}

// Validate reports an error if a field required for resolution is empty.
func (r ActionReference) Validate() error {
	switch {
	case r.Owner == "":
		return errors.New("action owner is required")
	case r.Repo == "":
		return errors.New("action repo is required")
	case r.PinnedVersion == "":
		return errors.New("action version is required")
	}
	return nil
}

// ResolutionKey identifies a resolution in the cache.
// Fields compare case-sensitively.
type ResolutionKey struct {
	Owner   string
	Repo    string
	Path    string
	Version string
}

// String returns the cache index for the key. Fields are quoted so that
// distinct keys never render to the same string.
func (k ResolutionKey) String() string {
	return fmt.Sprintf("%q/%q/%q@%q", k.Owner, k.Repo, k.Path, k.Version)
}

// IsCommitHash checks if a reference is a 40-char hex commit hash.
func IsCommitHash(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, c := range ref {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
