// Package wisefood is the entry point of the WiseFood SDK.
//
// A Client authenticates against the API, then exposes the catalog
// collections (Articles, FCTables) and the household resources (Households,
// Members) as lazily loaded proxies. New builds a client from an explicit
// Config, LoadConfig reads one from an HCL file, and NewFromEnv follows the
// WISEFOOD_MODE runtime contract:
//
//	WISEFOOD_MODE=http   requires WISEFOOD_BASE_URL and credentials
//	WISEFOOD_MODE=mock   serves every call from an in-process sandbox
//	WISEFOOD_MODE=auto   http when WISEFOOD_BASE_URL is set, mock otherwise
//
// The mock mode needs no network and is meant for tests and local
// development. WISEFOOD_SANDBOX_SEED points it at a YAML seed file.
package wisefood
