package albumcover

// FinishedFunc delivers the results of the provider search started with id.
type FinishedFunc func(id uint64, results []SearchResult)

// Provider is a cover-art search backend.
//
// StartSearch returns true if the search was accepted. An accepted search must
// eventually call done exactly once with the same id, unless it is cancelled
// first. done may be called from any goroutine, including synchronously from
// StartSearch. CancelSearch is best effort; a late completion is ignored.
type Provider interface {
	Name() string
	StartSearch(artist, album string, id uint64, done FinishedFunc) bool
	CancelSearch(id uint64)
	// FetchAll reports whether the provider takes part in bulk
	// "fetch all missing covers" runs.
	FetchAll() bool
}

// closer is implemented by providers that can announce their own teardown.
type closer interface {
	Done() <-chan struct{}
}
