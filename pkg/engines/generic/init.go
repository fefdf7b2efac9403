package generic

import "github.com/leapstack-labs/etlite/pkg/funcs"

func init() {
	Register(funcs.Default)
}
