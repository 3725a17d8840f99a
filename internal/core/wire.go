package core

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the domain Context.
var ProviderSet = wire.NewSet(NewContext)
