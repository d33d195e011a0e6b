//go:build !unix

package backend

import "os/exec"

// setProcessGroup is a no-op; WaitDelay alone bounds commands whose children
// outlive them.
func setProcessGroup(*exec.Cmd) {}
