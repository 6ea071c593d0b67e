// Package config loads host configuration with koanf.
//
// Sources are applied in order: built-in defaults, an optional YAML file,
// then SURFACE_HOST_* environment variables. Command-line flags are applied
// by the caller on top of the loaded Config.
//
// Example file:
//
//	log:
//	  level: debug
//	runtime:
//	  on_failure: continue
//	metrics:
//	  addr: 127.0.0.1:9090
//	wasi:
//	  env: [RUST_LOG=info]
//	  dirs: [./assets:/assets]
package config
