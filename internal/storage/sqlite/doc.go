// Package sqlite persists decode sessions and the fragments they recover,
// so an interrupted extraction can resume without rescanning frames whose
// fragments are already known.
package sqlite
