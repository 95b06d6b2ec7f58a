// Package devices prepares programs for configured devices and submits
// them as jobs.
//
// A device profile names the program type the device accepts, its basis
// gates and limits. Transform converts any registered program to that type
// through the transpiler and, when basis gates are set, rebases it with the
// compiler. Submit records the job in a store and hands the serialized
// program to the provider's Backend:
//
//	fleet, _ := devices.NewFleet(cfg.Devices, tr, devices.NewBackends(),
//	    devices.WithStore(store))
//	dev, _ := fleet.Get("ibm-sim")
//	job, err := dev.Submit(ctx, program, 1000)
//
// Submitting WithoutTranspile requires the program to already be of the
// device's type and fails with DeviceProgramTypeMismatchError otherwise.
// Vendor backends live outside this module; DryRunBackend completes jobs
// immediately without running them.
package devices
