// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// dbkey manages the composite key of a database: create a database, unlock it,
// and add, replace or remove its password, key file and token.
package main

func main() {
	Execute()
}
