// Package config provides application configuration management.
//
// Configuration is read from an optional .env file, an optional config.yaml
// (searched in "." and "./config") and COMPILER_* environment variables, in
// increasing order of precedence. Every key has a default, so the service
// starts with no configuration at all.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Gateway address: %s\n", cfg.Gateway.Addr)
package config
