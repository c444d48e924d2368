package catalog

import "errors"

// ErrCatalogUnavailable is wrapped by every FetchPage failure. The UI shows it
// as a transient banner; fetching again is always safe.
var ErrCatalogUnavailable = errors.New("catalog unavailable")
