// Package repositories implements SQLite persistence.
//
// The schema is created by the embedded migrations in the shared package ([shared.RunMigrations]).
//
//   - [TokenStoreRepository] : key-value rows backing the persistent token store
package repositories
