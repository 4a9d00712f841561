// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for accounts, chat sessions
// and messages.
//
// The types in this package are the persisted shapes of the session engine:
// everything here is JSON-serializable and written as whole records (no
// field-level patching). Account carries the password hash and salt and is
// only ever handled inside the auth package; SessionUser is the non-secret
// projection that every other component sees.
//
// Message ordering inside a ChatSession is append-only, with one exception:
// the most recent model message is mutated in place while a response stream
// is active (see the chat package).
package model
