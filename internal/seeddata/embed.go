// Package seeddata embeds the starter files installed by "pymerge init":
// a default pymerge.yml and a worked example backlog. The embedded
// filesystem is rooted at "seed/".
package seeddata

import "embed"

// SeedFS contains the embedded starter files. Walk from "seed" to iterate
// over all files.
//
//go:embed all:seed
var SeedFS embed.FS
