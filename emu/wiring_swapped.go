//go:build lptswapped

package emu

// DefaultWiring is the 9-bit bus layout this build decodes. Boards with the
// strobe and data lines swapped are built with -tags lptswapped.
const DefaultWiring = WiringSwapped
