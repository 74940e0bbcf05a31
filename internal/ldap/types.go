// Package ldap implements the client side of the subset of RFC 4511 that
// Barrel needs: simple bind, equality search, and extended operations.
package ldap

// Application tags for protocol operations (RFC 4511 appendix B).
const (
	ApplicationBindRequest       = 0
	ApplicationBindResponse      = 1
	ApplicationUnbindRequest     = 2
	ApplicationSearchRequest     = 3
	ApplicationSearchResultEntry = 4
	ApplicationSearchResultDone  = 5
	ApplicationExtendedRequest   = 23
	ApplicationExtendedResponse  = 24
)

// Search scopes.
const (
	ScopeBaseObject   = 0
	ScopeSingleLevel  = 1
	ScopeWholeSubtree = 2
)

// Alias dereferencing policies. Barrel never dereferences.
const DerefNever = 0

// Context tags inside protocol operations.
const (
	bindAuthSimple       = 0 // AuthenticationChoice simple [0]
	filterEquality       = 3 // Filter equalityMatch [3]
	extendedRequestName  = 0 // ExtendedRequest requestName [0]
	extendedRequestValue = 1 // ExtendedRequest requestValue [1]
)

// LDAP protocol version used for binds.
const protocolVersion = 3
