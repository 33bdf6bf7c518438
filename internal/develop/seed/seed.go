// Package seed embeds the default base probability table and special
// secretary rules shipped with the server.
package seed

import _ "embed"

//go:embed pool_lowdb.json
var poolTable []byte

//go:embed secretary_bonus.json
var secretaryRules []byte

// PoolTable returns the default base probability table in lowdb format.
func PoolTable() []byte {
	return poolTable
}

// SecretaryRules returns the default secretary bonus rules.
func SecretaryRules() []byte {
	return secretaryRules
}
