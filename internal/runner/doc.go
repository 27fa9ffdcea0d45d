// SPDX-License-Identifier: MPL-2.0

// Package runner executes installed modules.
//
// Module content is a POSIX shell script run by the mvdan.cc/sh interpreter.
// Scripts reach kiwi through a "kiwi" builtin backed by a Capability:
//
//	kiwi name                     print the running module's name
//	kiwi installed                print installed module names, one per line
//	kiwi describe <module>        print a module's description
//	kiwi ask <prompt> <choice>... ask the user and print the chosen answer
//	kiwi serverside [args...]     run this module's server-side logic on the registry
//	kiwi run <module> [args...]   run another installed module
//
// A registry served by "kiwi registry serve" runs a module's server-side logic
// by running the module itself with KIWI_SERVERSIDE=1 set and returning its
// standard output.
package runner
