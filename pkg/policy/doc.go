// Package policy integrates the Open Policy Agent (OPA) engine with call
// interception, evaluating Rego policies before each intercepted method runs.
//
// An Authorizer compiles its modules once and caches prepared queries per
// entrypoint. Its Hook refuses a call when the decision does not allow it,
// which aborts the call before the original method executes.
package policy
