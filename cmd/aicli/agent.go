package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BaSui01/aicli"
	"github.com/BaSui01/aicli/agent/plugins/builtin"
	"github.com/BaSui01/aicli/types"
)

func newAgentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Build agent configs and requests through the plugin hooks",
	}
	cmd.AddCommand(newAgentModelfileCmd(c), newAgentPreviewCmd(c))
	return cmd
}

func newAgentModelfileCmd(c *cli) *cobra.Command {
	var (
		name, role, system, model string
		temperature               float64
		sets                      []string
	)
	cmd := &cobra.Command{
		Use:   "modelfile",
		Short: "Render a Modelfile after the agent_init hooks ran",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if system == "" {
				system = c.cfg.Model.SystemPrompt
			}
			agent := types.NewAgentConfig(name, role, system)
			agent.Model = model
			if agent.Model == "" {
				agent.Model = c.cfg.Model.Name
			}
			agent.Temperature = temperature
			if !cmd.Flags().Changed("temperature") {
				agent.Temperature = c.cfg.Model.Temperature
			}
			if c.cfg.Model.MaxTokens > 0 {
				agent.MaxTokens = c.cfg.Model.MaxTokens
			}
			if err := applySets(agent, sets); err != nil {
				return err
			}

			return c.withApp(cmd.Context(), true, func(rt *aicli.Runtime) error {
				rt.Manager.ApplyDefaults(agent)
				out, err := rt.Manager.ProcessAgentConfig(cmd.Context(), agent)
				if err != nil {
					return err
				}
				if err := rt.Manager.Validate(out); err != nil {
					return err
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), out.Modelfile())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "assistant", "Agent name")
	cmd.Flags().StringVar(&role, "role", "", "Agent role")
	cmd.Flags().StringVar(&system, "system", "", "System prompt (defaults to model.system_prompt)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to model.name)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a plugin field, e.g. --set top_k=20")
	return cmd
}

func newAgentPreviewCmd(c *cli) *cobra.Command {
	var (
		model, system string
		noCache       bool
		sets          []string
	)
	cmd := &cobra.Command{
		Use:   "preview PROMPT",
		Short: "Print a generate request after the generate_request hooks ran",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &types.GenerateRequest{
				Model:  model,
				Prompt: args[0],
				System: system,
			}
			if req.Model == "" {
				req.Model = c.cfg.Model.Name
			}
			if err := applySets(req, sets); err != nil {
				return err
			}
			if noCache {
				req.Set(builtin.UseCacheField, false)
			}

			return c.withApp(cmd.Context(), true, func(rt *aicli.Runtime) error {
				rt.Manager.ApplyDefaults(req)
				out, err := rt.Manager.ProcessGenerateRequest(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to model.name)")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Set use_cache=false on the request")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a plugin field, e.g. --set seed=42")
	return cmd
}

// applySets 解析 key=value 并写入记录的扩展字段
func applySets(rec types.Record, sets []string) error {
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		rec.Set(key, parseValue(raw))
	}
	return nil
}

// parseValue 依次尝试整数、浮点数、布尔值，否则按字符串处理
func parseValue(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
