// Package platform defines the OS capabilities the watchdog depends on.
// Each capability is a small interface so probes and actuators can be
// exercised with fakes; production bindings live in the build-tagged
// files of this package.
package platform
