// Package config handles configuration loading for scry-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and duration parsing; defaults for optional
// timing values are applied by the consumers.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SCRY_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/scry/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${SCRY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	agents:
//	  idle_timeout: "30m"
//	  evict_interval: "10m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/scry/gateway.db"
//
// Authentication (leave jwt_secret empty to disable auth):
//
//	auth:
//	  jwt_secret: "${SCRY_JWT_SECRET}"
//
// Agent profiles and thread lifecycle:
//
//	agents:
//	  profile_dir: "/etc/scry/agents"
//	  idle_timeout: "30m"
//	  evict_interval: "10m"
//
// Job retention:
//
//	jobs:
//	  retention: "1h"
//	  purge_interval: "5m"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "scry-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Telemetry:
//
//	telemetry:
//	  enabled: false
//	  exporter: "stdout"  # stdout, none
//	  interval: "1m"
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/scry/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
