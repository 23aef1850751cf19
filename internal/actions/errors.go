package actions

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTimeLayout renders reset times like "4/9/2025, 3:08:44 PM".
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

// Formatter renders rate-limit reset times.
type Formatter struct {
	Location *time.Location // time.Local if nil
	Layout   string         // DefaultTimeLayout if empty
}

// Format renders t in the formatter's location and layout.
func (f Formatter) Format(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	layout := f.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return t.In(loc).Format(layout)
}

// ResolveError is a failed resolution with user-facing text.
// It unwraps to ErrNotFound or *RateLimitError.
type ResolveError struct {
	Reference ActionReference
	Err       error
	msg       string
}

func (e *ResolveError) Error() string {
	return e.msg
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Compose renders err for ref. Errors other than not-found and rate-limited
// are returned unchanged.
func (f Formatter) Compose(ref ActionReference, err error) error {
	header := fmt.Sprintf("Unable to find SHA for %s/%s@%s", ref.Owner, ref.Repo, ref.PinnedVersion)

	var rateErr *RateLimitError
	switch {
	case errors.As(err, &rateErr):
		return &ResolveError{
			Reference: ref,
			Err:       err,
			msg:       header + "\n" + rateErr.Detail + "\nLimit resets at: " + f.Format(rateErr.Reset),
		}
	case errors.Is(err, ErrNotFound):
		return &ResolveError{
			Reference: ref,
			Err:       err,
			msg: header + "\nPrivate repos require you to set the " + GitHubTokenEnvVar +
				" environment variable to fetch the latest SHA",
		}
	default:
		return err
	}
}
