// Package builtin provides the plugins shipped with aicli: request logging,
// response caching and custom model parameters.
//
// Each plugin extends records through schema extensions and participates in
// the hook pipeline of agent/plugins. New builds a plugin by name so the
// set of enabled built-ins can come from configuration.
package builtin
