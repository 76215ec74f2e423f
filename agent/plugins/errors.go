package plugins

import (
	"errors"
	"fmt"

	"github.com/BaSui01/aicli/types"
)

// Sentinel errors for the plugin subsystem. They carry a types.ErrorCode and
// work with errors.Is through the wrapping errors below.
var (
	ErrPluginAlreadyRegistered = types.NewError(types.ErrDuplicatePlugin, "plugin already registered")
	ErrPluginNotFound          = types.NewError(types.ErrPluginNotFound, "plugin not found")
	ErrSchemaConflict          = types.NewError(types.ErrSchemaConflict, "schema conflict")
	ErrHookFailed              = types.NewError(types.ErrHookExecution, "hook execution failed")
	ErrLifecycle               = types.NewError(types.ErrLifecycle, "plugin lifecycle failure")
	ErrUnknownHook             = types.NewError(types.ErrInvalidRequest, "unknown hook")
	ErrRecordKind              = types.NewError(types.ErrInvalidRequest, "record kind does not match hook")
	ErrInvalidSchema           = types.NewError(types.ErrInvalidConfig, "invalid schema extension")
)

var errNilRecord = errors.New("hook returned a nil record")

// SchemaConflictError reports a plugin field whose type differs from the
// base field of the same name.
type SchemaConflictError struct {
	Plugin     string
	Kind       types.RecordKind
	Field      string
	BaseType   types.FieldType
	PluginType types.FieldType
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("plugin %q declares %s.%s as %s, base field is %s",
		e.Plugin, e.Kind, e.Field, e.PluginType, e.BaseType)
}

func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// HookExecutionError wraps a failure raised by a plugin inside a hook.
// The executor logs it and never returns it to the caller.
type HookExecutionError struct {
	Plugin string
	Hook   HookName
	Err    error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("plugin %q hook %s: %v", e.Plugin, e.Hook, e.Err)
}

func (e *HookExecutionError) Unwrap() []error { return []error{ErrHookFailed, e.Err} }

// Lifecycle phases.
const (
	PhaseInit     = "init"
	PhaseShutdown = "shutdown"
)

// LifecycleError wraps a plugin's init or shutdown failure.
type LifecycleError struct {
	Plugin string
	Phase  string
	Err    error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s plugin %s: %v", e.Phase, e.Plugin, e.Err)
}

func (e *LifecycleError) Unwrap() []error { return []error{ErrLifecycle, e.Err} }

// FailedPlugins returns the names of the plugins reported in an aggregate
// lifecycle error, in report order.
func FailedPlugins(err error) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if le, ok := err.(*LifecycleError); ok {
			if !seen[le.Plugin] {
				seen[le.Plugin] = true
				names = append(names, le.Plugin)
			}
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return names
}
