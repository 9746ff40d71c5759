// Package config provides configuration management for panelctl.
//
// Configuration is loaded from YAML files and merged in layers, with later
// sources overriding earlier ones:
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/panelctl/config.yaml)
//  3. Project Configuration (./.panelctl/config.yaml)
//
// Passing --config replaces layers 2 and 3 with a single file; relative
// directories in that file are resolved against the file's own directory.
//
// # Configuration Structure
//
//	workingDirectory: /opt/panel/backend
//	dataDirectory: /opt/panel/backend/mc_servers
//	frontendAssetPath: /opt/panel/backend/frontend_dist
//	resourcesPath: /opt/panel/resources
//	autostart: false
//	networkExposure: local-only   # local-only | local-network | public
//	port: 1105
//	interpreter:
//	  path: ""
//	  minVersion: "3.8"
//	worker:
//	  moduleRunner: uvicorn
//	  appTarget: main:app
//	  entrypoint: main.py
//	  manifest: requirements.txt
//	  installDependencies: true
//	timeouts:
//	  startup: 60s
//	  fallbackStartup: 15s
//	  shutdownGrace: 5s
//
// # Network Exposure
//
// local-only binds the worker to 127.0.0.1. local-network and public bind to
// 0.0.0.0; they differ only in what the worker program itself allows, which it
// learns through the NETWORK_MODE variable.
//
// A SupervisorConfig is a plain value. Once loaded it is never mutated, so it
// can be shared between goroutines without locking.
package config
