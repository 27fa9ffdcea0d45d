// SPDX-License-Identifier: MPL-2.0

// Package config loads kiwi's configuration using Viper with CUE as the file format.
//
// The file is config.cue in the platform config directory ($XDG_CONFIG_HOME/kiwi on
// Linux, ~/Library/Application Support/kiwi on macOS, %APPDATA%\kiwi on Windows) or
// the path given with --config. It is validated against the embedded schema in
// config_schema.cue before being merged over the defaults. KIWI_REGISTRY_URL and
// KIWI_MODULES_PATH override the file.
package config
