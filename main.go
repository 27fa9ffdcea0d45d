// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/kiwi-modules/kiwi/cmd/kiwi"

func main() {
	cmd.Execute()
}
