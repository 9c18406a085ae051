// Package config handles configuration loading for coven-guide.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Every field has a default, so the service also runs without a
// file.
//
// # Configuration File
//
// Locations, first match wins:
//
//  1. The -config flag
//  2. Path from the COVEN_GUIDE_CONFIG environment variable
//  3. ./guide.yaml
//
// Relative content, credential and audit paths are resolved against the
// directory holding the file.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	transport:
//	  matrix:
//	    access_token: "${GUIDE_MATRIX_TOKEN}"
//
// Only the ${VAR_NAME} form is expanded; unset variables become empty.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax and must be positive:
//
//	policy:
//	  lockout_duration: "5m"
//	  admin_idle_timeout: "15m"
//	  session_ttl: "24h"
//	  sweep_interval: "1m"
//	dedupe:
//	  ttl: "10m"
//
// # Configuration Sections
//
// Resources:
//
//	content:
//	  path: "./content.json"     # JSON, or YAML by .yaml/.yml extension
//	credential:
//	  path: "./credential.toml"  # admin_password or admin_password_hash
//	audit:
//	  path: "./data/audit.db"    # empty keeps the audit log in memory
//
// Transport:
//
//	transport:
//	  kind: "matrix"             # console (default) or matrix
//	  matrix:
//	    homeserver: "https://matrix.example.org"
//	    user_id: "@guide:example.org"
//	    access_token: "${GUIDE_MATRIX_TOKEN}"
//	    allowed_users: []        # empty allows everyone
//
// Limits:
//
//	policy:
//	  max_login_attempts: 3
//	dedupe:
//	  max_size: 10000
//	router:
//	  workers: 16
//
// Logging:
//
//	logging:
//	  level: "info"              # debug, info, warn, error
//	  format: "text"             # text or json
//
// Zero values select the built-in defaults.
package config
