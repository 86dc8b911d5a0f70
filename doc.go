// Package hutchpython assembles interactive beamline sessions for LCLS
// hutches: it loads the hutch configuration, instantiates devices from
// the shared device database and camera configuration, runs user and
// experiment startup scripts, applies per-object configuration
// overrides, and exposes the result as an immutable object registry.
//
// # Layout
//
//   - config: hutch conf.yml loading and validation
//   - device: object model (devices, groups, tab completion metadata)
//   - devicedb: device database client and concurrent loader
//   - deviceregistry: factory registrations for the supported classes
//   - camload: camviewer.cfg parsing into area detector objects
//   - objconf: object configuration override pipeline
//   - userload: sandboxed Lua startup scripts
//   - experiment: current experiment resolution and naming
//   - daq: data acquisition control connections
//   - archive: archiver appliance retrieval client
//   - session: the orchestrator tying the steps together
//   - cmd/hutch-python: the launcher binary
//
// Sessions fail soft: a broken device, script or camera definition is
// logged and skipped so the rest of the beamline still loads.
package hutchpython
