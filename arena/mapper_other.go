//go:build !unix && !windows

package arena

// DefaultMapper returns a GoMapper on platforms without an anonymous mapping primitive
func DefaultMapper() Mapper {
	return &GoMapper{}
}
