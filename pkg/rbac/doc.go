// Package rbac evaluates the collection permission table.
//
// The checker is a pure function of (role, action, context) and fails
// closed: an action missing from the table is denied for every role.
// Callers must resolve the role from a freshly fetched collection
// record; the HTTP middleware in this package does exactly that for
// routed requests.
package rbac
