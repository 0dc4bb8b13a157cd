// Package physics is a deterministic server-side 3D rigid-body physics
// engine driven by an externally scheduled tick. Bodies, colliders, worlds,
// triggers and trigger memberships live as rows in a RowStore; each call to
// Engine.StepWorld loads the rows of one world, advances the simulation by
// one fixed time step using a substepped XPBD solver, and writes the dirty
// rows back as a single atomic commit.
//
// The per-tick pipeline is: assemble body views, sync kinematic poses,
// rebuild the QBVH broad phase, then for each substep run narrow-phase
// contact generation, integration, iterated positional constraint solving,
// velocity recomputation and velocity-level friction/restitution. Trigger
// overlaps are diffed at the end of the tick.
package physics
