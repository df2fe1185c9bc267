//go:build linux

package clockreg

import "github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"

// RescanLinux is the production entry point for Rescan: it opens each
// newly-discovered PHC via the real /dev/ptpN ioctl path, so callers
// outside this package (internal/engine, internal/syncmodule/freerun)
// never need to construct a phcDevice themselves.
func (r *Registry) RescanLinux(table *linkstate.LinkTable) {
	r.Rescan(table, func(phcIndex int32) (phcDevice, error) {
		return openPHC(phcIndex)
	})
}
