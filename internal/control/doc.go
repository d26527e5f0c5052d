// Package control provides feedback controllers that scene drivers use to
// steer bodies with forces.
//
//	pid := control.NewPID(25, 5, 10, 3) // Kp, Ki, Kd, setpoint
//	u := pid.Update(body.Position().Y(), dt)
//
// Controllers hold state between calls and are not safe for concurrent
// use; each driven body owns its own.
package control
