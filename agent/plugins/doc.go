// Package plugins provides the plugin registry and hook pipeline of aicli.
//
// A Plugin has a name, a version and Init/Shutdown lifecycle methods. It
// joins extension points by implementing hook interfaces (AgentInitHook,
// GenerateRequestHook, GenerateResponseHook, ChatMessageHook) and adds
// record fields by implementing SchemaExtender.
//
// Manager ties the pieces together: the InMemoryPluginRegistry keeps plugins
// in registration order with their enabled flag and priority, hooks run in
// descending priority with ties in registration order, and a failing plugin
// is logged and skipped so the chain always returns a record.
//
// Usage:
//
//	m := plugins.NewManager(plugins.WithLogger(logger))
//	m.Register(myPlugin, plugins.WithConfig(plugins.PluginConfig{Enabled: true, Priority: 50}))
//	m.InitializeAll(ctx)
//	defer m.ShutdownAll(ctx)
//	req, _ = m.ProcessGenerateRequest(ctx, req)
package plugins
