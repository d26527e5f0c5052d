// Package viz draws rigid body worlds in the terminal.
//
// [BuildFrame] reduces a world to wireframe segments, [Camera] projects
// them and [Canvas] rasterises them as Braille dots. [Model] is a Bubble
// Tea program that steps a simulator live; [Picker] chooses the scene.
//
// # Key Bindings
//
//	Space   - Pause/Resume
//	.       - Single step while paused
//	R       - Rebuild the scene
//	[ ]     - Slower/faster
//	Arrows  - Orbit the camera
//	C / O   - Toggle contacts / joints
//	G       - Toggle GIF recording
//	?       - Show help overlay
package viz
