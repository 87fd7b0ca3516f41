// Package registry collects configuration functions while a unit is being
// loaded.
//
// A Collector is the transient list that configuration functions are marked
// into while the loader walks a unit. Each load creates its own Collector
// and drains it before returning, so registrations can never leak from one
// load into another, even when several loads run at the same time.
//
// Marking is explicit: the loader calls Mark when it reaches a function's
// definition, and Mark hands the same function back so it stays callable on
// its own.
package registry
