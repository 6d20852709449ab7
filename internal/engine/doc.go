// Package engine defines the contract between design regions and an
// external FDTD engine session.
//
// A Session owns named objects (monitors, mesh overrides, imported
// geometry). Registration returns a Handle carrying a session-issued token so
// callers never address objects by bare name. All lengths crossing this
// boundary are metres.
//
// Implementations: memengine (in-process reference, no Maxwell solve) and
// bridge.Client (remote session over gRPC).
package engine
