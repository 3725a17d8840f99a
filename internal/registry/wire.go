package registry

import "github.com/google/wire"

// ProviderSet is the Wire provider set for the registry package.
var ProviderSet = wire.NewSet(New)
