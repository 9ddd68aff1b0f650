//go:build !lptswapped

package emu

// DefaultWiring is the 9-bit bus layout this build decodes.
const DefaultWiring = WiringNormal
