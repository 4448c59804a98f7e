// Package lov serves lists of values for LIST_OF_VALUES extension fields.
//
// A list is static (a YAML catalog or a Static slice), dynamic (a
// ProviderFunc evaluated per call) or stored (the options persisted on an
// extension field, see Stored). Registry resolves lists by name; providers
// registered in code take precedence over catalogs of the same name.
//
// Catalogs live one per file in a directory:
//
//	# levels.yaml
//	name: levels
//	items:
//	  - value: "1"
//	    label: Junior
//	    order: 1
//
// Watcher reloads the directory with fsnotify when a catalog file changes.
// A catalog that fails to parse leaves the previously loaded set in place.
package lov
