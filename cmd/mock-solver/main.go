// mock-solver is a scripted stand-in for the crystal-plasticity solver. It
// accepts the solver's launch flags, writes a synthetic result file with lock
// markers, and stops after the current increment on SIGINT.
// This binary is testing-only; it has no role in production.
//
// Usage:
//
//	HOMOGENIZE_MOCK_PROFILE=hardening mock-solver --geom g.vti --load l.yaml \
//	    --material m.yaml --numerics n.yaml --jobname tensile_x --workingdirectory run/
//
// Profiles: hardening (default), elastic, fault, locked, garbage, corrupt.
// HOMOGENIZE_MOCK_INCREMENTS and HOMOGENIZE_MOCK_INTERVAL tune the pace.
package main

import (
	"os"

	"github.com/vbluemer/Homogenization-for-Damask/internal/mocksolver"
)

func main() {
	os.Exit(mocksolver.Main(os.Args[1:]))
}
