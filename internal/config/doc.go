// Package config handles configuration loading for the assistants service.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path
// ends in .toml. Keys missing from the file keep the values from Default,
// so an empty file yields a runnable local setup.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	callback:
//	  secret: "${CALLBACK_SECRET}"
//
// Unset variables expand to the empty string. The binary loads a .env file
// first when one exists.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	memory:
//	  ttl: "720h"
//	callback:
//	  timeout: "5s"
//	  base_backoff: "200ms"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	database:
//	  driver: "sqlite"            # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "./data/assistants.db"
//
//	conversations:
//	  backend: "sqlite"           # sqlite or dynamodb
//	  dynamodb_table: ""
//	  aws_region: ""
//
//	memory:
//	  enabled: true
//	  ttl: "720h"                 # last_order_id / last_tracking_id expiry
//	  default_project_id: "dev"
//
//	idempotency:
//	  max_event_ids: 200
//
//	router:
//	  autonomous_mode: false
//
//	jobs:
//	  workers: 4
//	  queue_size: 64
//
//	callback:
//	  url: ""                     # empty disables callbacks
//	  secret: ""
//	  max_retries: 3
//	  timeout: "5s"
//	  base_backoff: "200ms"
//
//	auth:
//	  jwt_secret: ""              # empty disables API auth; otherwise >= 32 bytes
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
