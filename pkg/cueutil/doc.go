// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing and encoding utilities.
//
// The package consolidates the 3-step CUE parsing pattern used by the module
// store and the config loader:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[manifest](
//	    schemaBytes,
//	    fileBytes,
//	    "#Module",
//	    cueutil.WithFilename("hello.kiwimod.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes CUE path for debugging
//	}
//	return result.Value, nil
//
// [Encode] performs the reverse direction: it renders a Go value as
// formatted CUE source so files written by kiwi can be read back by humans
// and by ParseAndDecode alike.
package cueutil
