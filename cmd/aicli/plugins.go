package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli"
	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/config"
	"github.com/BaSui01/aicli/internal/server"
	"github.com/BaSui01/aicli/types"
)

func newPluginsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage aicli plugins",
		Long:  "Commands for listing, enabling, disabling and ordering plugins and inspecting their schema extensions",
	}
	cmd.AddCommand(
		newPluginsListCmd(c),
		newPluginsToggleCmd(c, "enable", true),
		newPluginsToggleCmd(c, "disable", false),
		newPluginsPriorityCmd(c),
		newPluginsSchemaCmd(c),
		newPluginsWatchCmd(c),
	)
	return cmd
}

func newPluginsListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered plugins and their hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), false, func(rt *aicli.Runtime) error {
				infos := rt.Manager.List()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), infos)
				}
				return writePluginTable(cmd.OutOrStdout(), infos)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func writePluginTable(out io.Writer, infos []plugins.PluginInfo) error {
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(out, "No plugins registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tENABLED\tPRIORITY\tSTATE\tHOOKS")
	for _, info := range infos {
		hooks := make([]string, len(info.Descriptor.Hooks))
		for i, h := range info.Descriptor.Hooks {
			hooks[i] = string(h)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
			info.Descriptor.Name,
			info.Descriptor.Version,
			info.Config.Enabled,
			info.Config.Priority,
			info.State,
			strings.Join(hooks, ","))
	}
	return w.Flush()
}

func newPluginsToggleCmd(c *cli, verb string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " NAME",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a plugin and save the setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return c.withApp(cmd.Context(), false, func(rt *aicli.Runtime) error {
				var err error
				if enable {
					err = rt.Manager.Enable(cmd.Context(), name)
				} else {
					err = rt.Manager.Disable(cmd.Context(), name)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Plugin %s %sd\n", name, verb)
				return nil
			})
		},
	}
}

func newPluginsPriorityCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "priority NAME PRIORITY",
		Short: "Set a plugin's hook priority (higher runs first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("priority must be an integer: %w", err)
			}
			return c.withApp(cmd.Context(), false, func(rt *aicli.Runtime) error {
				if err := rt.Manager.SetPriority(cmd.Context(), args[0], priority); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Plugin %s priority set to %d\n", args[0], priority)
				return nil
			})
		},
	}
}

func newPluginsSchemaCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema KIND",
		Short: "Show the merged schema of a record kind",
		Long:  "Show base and plugin fields of AgentConfig, GenerateRequest, GenerateResponse or ChatMessage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), false, func(rt *aicli.Runtime) error {
				rs := rt.Manager.ResolveSchema(kind)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rs)
				}
				return writeSchemaTable(cmd.OutOrStdout(), rs)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func writeSchemaTable(out io.Writer, rs plugins.ResolvedSchema) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tTYPE\tDEFAULT\tSOURCE")
	for _, name := range rs.Fields.Names() {
		spec := rs.Fields[name]
		def := ""
		if spec.Default != nil {
			def = fmt.Sprint(spec.Default)
		}
		source := rs.Sources[name]
		if source == "" {
			source = "(base)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, spec.Type, def, source)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, warn := range rs.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warn)
	}
	return nil
}

// parseKind 接受记录类型名，大小写与下划线不敏感
func parseKind(s string) (types.RecordKind, error) {
	norm := strings.ToLower(strings.ReplaceAll(s, "_", ""))
	for _, kind := range []types.RecordKind{
		types.KindAgentConfig,
		types.KindGenerateRequest,
		types.KindGenerateResponse,
		types.KindChatMessage,
	} {
		if strings.ToLower(string(kind)) == norm {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

func newPluginsWatchCmd(c *cli) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Initialize plugins and reload their settings when the config file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Plugins.Store == "database" {
				return fmt.Errorf("watch requires the file plugin store, got %q", c.cfg.Plugins.Store)
			}
			return c.withApp(cmd.Context(), true, func(rt *aicli.Runtime) error {
				out := cmd.OutOrStdout()
				if metricsAddr != "" {
					cfg := server.DefaultConfig()
					cfg.Addr = metricsAddr
					srv := server.NewManager(server.MetricsHandler(rt.Registry), cfg, c.logger)
					if err := srv.Start(); err != nil {
						return err
					}
					defer srv.Shutdown(context.Background())
					_, _ = fmt.Fprintf(out, "Metrics on http://%s/metrics\n", srv.Addr())
				}
				return watchPluginConfig(cmd.Context(), rt, c.logger, out)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}

// watchPluginConfig 在插件配置文件变化时重新应用配置，直到 ctx 结束
func watchPluginConfig(ctx context.Context, rt *aicli.Runtime, logger *zap.Logger, out io.Writer) error {
	path := rt.Config.Plugins.ConfigPath
	watcher, err := config.NewFileWatcher([]string{path}, config.WithWatcherLogger(logger))
	if err != nil {
		return err
	}

	watcher.OnChange(func(evt config.FileEvent) {
		if evt.Op == config.FileOpRemove {
			return
		}
		if err := rt.Manager.LoadConfig(ctx); err != nil {
			logger.Error("plugin config reload failed", zap.Error(err))
			return
		}
		_, _ = fmt.Fprintf(out, "Reloaded %s\n", evt.Path)
	})

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	_, _ = fmt.Fprintf(out, "Watching %s\n", path)
	<-ctx.Done()
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
