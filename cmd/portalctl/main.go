// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command portalctl drives the portal session core from a terminal, keeping
// its credentials in a file under the user's home directory.
package main

import "github.com/taibuivan/washpass/cmd/portalctl/cmd"

func main() {
	cmd.Execute()
}
