// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/leseb/quizsearch/pkg/cli"

func main() {
	cli.Execute()
}
