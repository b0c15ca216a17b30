// Package unifs contains the capability interface shared by every filesystem
// engine, its error kinds and the validating layer engines embed.
//
// Concrete engines live in sub packages: memfs (in-memory), physfs (disk),
// and the composites aggregatefs, mountfs, subfs and readonlyfs.
package unifs
