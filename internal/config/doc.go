// Package config provides loading and environment overlay for pmlcar
// configuration: where session tubs live, how media is encoded and the
// defaults used when generating training batches.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file (JSON or YAML) and overlay env vars
//	if fileCfg, err := config.Load("~/mycar/config.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
