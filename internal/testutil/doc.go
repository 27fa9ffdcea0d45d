// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by kiwi's tests: isolating the
// user's home and config directories from the environment and writing
// fixture files that fail the test on error.
package testutil
