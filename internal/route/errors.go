package route

import "errors"

var (
	// ErrFetch means the route file could not be downloaded
	ErrFetch = errors.New("failed to fetch file")

	// ErrParse means the file is not well-formed GPX or KML
	ErrParse = errors.New("failed to parse route file")

	// ErrNoRouteData means the file parsed but holds no line geometry
	ErrNoRouteData = errors.New("no route data found in file")
)

// FailureKind names the sentinel err wraps, for metrics labels
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNoRouteData):
		return "no_route_data"
	default:
		return "other"
	}
}

// Reason is the short user-facing description of a load failure
func Reason(err error) string {
	for _, sentinel := range []error{ErrFetch, ErrParse, ErrNoRouteData} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
