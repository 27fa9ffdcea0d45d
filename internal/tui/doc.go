// SPDX-License-Identifier: MPL-2.0

// Package tui asks the user to pick among a fixed set of answers.
//
// Prompts are line based so they work the same on a terminal, through a pipe
// and in tests. Styling is applied only when the output is a terminal.
package tui
