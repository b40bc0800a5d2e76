// Package config handles configuration loading for coven-meta.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by the .toml
// extension) with environment variable expansion, defaults and validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_META_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/meta.yaml
//  3. ~/.config/coven/meta.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	accounts:
//	  - driver: matrix
//	    access_token: "${MATRIX_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Configuration Sections
//
//	user:
//	  id: "alice"
//
//	database:
//	  path: "~/.local/share/coven/meta.db"
//
//	relay:
//	  quote_prefix: ">>"       # marker on relayed copies
//	  merge_window: "5m"       # how far apart redundant copies may be
//	  echo_ttl: "5m"          # how long a relayed message id is remembered
//	  echo_cache_size: 10000  # so a redelivered message is relayed once
//
//	accounts:
//	  - driver: matrix         # matrix, memory
//	    id: "@alice:matrix.org"
//	    homeserver: "https://matrix.org"
//	    access_token: "${MATRIX_TOKEN}"
//	    contacts: ["@bob:matrix.org"]
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Field rules are declared as validate tags and checked with
// go-playground/validator. Cross-field rules (matrix accounts need a
// homeserver and a token, accounts are unique) are checked by hand.
package config
