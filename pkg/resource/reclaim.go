package resource

import (
	"runtime"
	"runtime/debug"
)

// Reclaim forces a collection and returns freed heap pages to the OS.
// Called after tiles have been released under memory pressure.
func Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}
