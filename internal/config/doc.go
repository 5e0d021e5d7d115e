// Package config loads and validates the gateway's configuration document.
//
// A document declares the orchestration defaults and the list of
// subordinate MCP servers the registry should connect to. Loading happens
// in three passes: environment-variable substitution on the raw text
// (${VAR} and ${VAR:-default}), YAML decoding into GatewayConfig, and
// validation — first struct-tag constraints via go-playground/validator,
// then business rules that tags can't express (unique server ids, id
// character set, transport/transport_config consistency).
//
// # Example
//
//	version: "1.0"
//	orchestration:
//	  resource_cache_ttl_s: 3600
//	  max_retry_attempts: 3
//	servers:
//	  - id: "catalog"
//	    priority: 10
//	    capabilities: ["list_resources"]
//	    transport: "stdio"
//	    transport_config:
//	      command: "catalog-mcp-server"
//	      env:
//	        DB_DSN: "${CATALOG_DSN}"
//
// The gateway holds no persisted state of its own (spec.md §6.4); every
// field here is reconstructed fresh from the document each time LoadConfig
// runs.
package config
