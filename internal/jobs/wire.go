package jobs

import "github.com/google/wire"

// ProviderSet is the Wire provider set for the jobs package.
var ProviderSet = wire.NewSet(NewHandlers, NewHTTPFetcher, wire.Bind(new(Fetcher), new(*HTTPFetcher)))
