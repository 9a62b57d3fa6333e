/*
molcache fetches PDB coordinate files, keeps them in a disk cache and
parses them.

Usage:

	molcache fetch 1bna 4hhb      copy from a local archive (or find in the cache) and parse
	molcache parse file.pdb.gz    parse local files
	molcache scan dir             parse a whole archive, several at once,
	                              --attypes counts atom names
	molcache cache stat|rm|clear  look after the cache
	molcache config init [file]   write a config file

Settings come from a yaml file given with -c, MOLCACHE_* environment
variables (MOLCACHE_CACHE_DIR, MOLCACHE_CACHE_SIZE, ...) and defaults.
*/
package main

import (
	"os"

	"github.com/andrew-torda/molcache/pkg/molcli"
)

func mymain() int {
	return molcli.NewApp().Execute(os.Args[1:])
}

func main() {
	os.Exit(mymain())
}
