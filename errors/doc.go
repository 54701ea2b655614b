// Package errors provides the error classification used across the inventory
// connector.
//
// # Classes
//
// Every error the connector produces falls into one of three classes:
//
//   - Transient: the hub link dropped, a backend timed out or returned an
//     error status. Worth retrying; the connector keeps serving.
//   - Invalid: the tenant configuration failed validation, an inbound query
//     frame did not decode, a field name was missing from the mapping.
//   - Fatal: the configuration file is missing or unreadable, the backend
//     dialect is unsupported. The process stops.
//
// # Taxonomy
//
// The connector-level error kinds map onto sentinels:
//
//	ValidationError  config.ValidationError, matches ErrInvalidConfig
//	IOError          ErrConfigNotFound, ErrConfigUnreadable
//	ConnectionError  ErrNoConnection, ErrConnectionLost
//	BackendError     ErrBackendFailed
//	KeyError         translate.KeyError, matches ErrKeyNotFound
//
// # Wrapping
//
// Wrapping always follows "component.method: action failed: cause":
//
//	if err := db.PingContext(ctx); err != nil {
//	    return errs.WrapTransient(errs.Join(errs.ErrNoConnection, err),
//	        "DBQuerier", "Connect", "ping database")
//	}
//
// Callers branch on the class (IsTransient, IsInvalid, IsFatal) or on the
// sentinel with the standard errors.Is.
package errors
