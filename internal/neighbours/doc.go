// Package neighbours keeps Verlet neighbour lists current for a simulation
// loop.
//
// Responsibilities:
//   - build the self pair list, and the image pair lists when symmetry
//     transformations are given, at cut-off plus buffer
//   - on each Update, ask the update checker whether particle motion or a
//     cell change has invalidated the lists, and rebuild only then
//   - log rebuild decisions and report them to the metrics collector
//   - expose molecules as connected components of the bond list
//
// Key types:
//   - Manager: owns the cached lists and the snapshot they were built from
//   - Options: selections, radii, bonds and image settings fixed for the
//     lifetime of a Manager
//   - Statistics: build, check and rebuild counts
//
// Without transformations a cell, when given, must be orthorhombic and is
// applied by minimum image. With transformations the self list is open and
// periodic interactions come from the image pair lists.
package neighbours
