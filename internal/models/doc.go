// Package models defines the core domain models for physioledger.
//
// # Entities
//
// The ledger of one owner scope is made of four collections:
//   - Client: a person receiving sessions
//   - Session: one recorded appointment for a client
//   - Package: a prepaid bundle of sessions with a price
//   - Payment: money received against a package
//
// User is the account that owns a scope when authentication is enabled.
//
// # Design Principles
//
// 1. **IDs, not pointers**: relationships use ID strings (ClientID, PackageID)
// 2. **Decimal money**: amounts are shopspring decimals, never floats
// 3. **Calendar dates**: dates are YYYY-MM-DD strings, with no timezone attached
// 4. **Portable JSON**: field tags match the snapshot document format, so the
//    same structs are persisted, exported and imported
package models
