// Package dynamics holds rigid bodies, their colliders and joints, and the
// island solver that advances them.
//
// The package defines:
//
//   - [Body]: mass, inertia, pose, velocities and sleep state
//   - [Collider]: a shape attached to a body with material and filter
//   - [Joint]: constraint interface implemented by [BallSocket], [Fixed]
//     and [Distance]
//   - [IslandBuilder]: partitions awake bodies into [Island] values
//   - [Island.Solve]: sequential impulses with warm starting followed by a
//     non-linear Gauss-Seidel position pass
//
// # Thread Safety
//
// Bodies are owned by a single world. Different islands may be solved
// concurrently because an island only writes to its own member bodies,
// manifolds and joints; static and kinematic bodies are read through
// per-island copies.
package dynamics
