package cfscan

import (
	"expvar"
	"fmt"
)

// Get an *expvar.Int with the given path.
func getVarInt(stage, id string) *expvar.Int {
	fullname := fmt.Sprintf("cfscan.%s.%s", stage, id)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Int)
	}
	return expvar.NewInt(fullname)
}

// Get an *expvar.Map with the given path.
func getVarMap(stage, id string) *expvar.Map {
	fullname := fmt.Sprintf("cfscan.%s.%s", stage, id)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Map)
	}
	return expvar.NewMap(fullname)
}
