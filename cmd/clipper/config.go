package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mahira-clipper/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "read or change api_config.json",
}

var configGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "print the config merged over defaults, or one dotted key such as groq.model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  doConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "merge values into the config, e.g. clip.num_clips=3 worker.interpreter=python3",
	Long: `Merge values into api_config.json.

VALUE is read as YAML, so 3 is a number, true a bool and [a, b] a list.
Write KEY:=VALUE or quote the value to store it as a string. API keys and
keys whose default is a string are always stored as strings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: doConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), store.Path())
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func doConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := store.Get()
	if err != nil {
		return err
	}

	var value any = cfg
	if len(args) == 1 {
		var ok bool
		value, ok = config.Lookup(cfg, splitKey(args[0])...)
		if !ok {
			return fmt.Errorf("config key %s is not set", args[0])
		}
	}
	if s, ok := value.(string); ok {
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func doConfigSet(cmd *cobra.Command, args []string) error {
	partial := map[string]any{}
	for _, arg := range args {
		key, value, err := parseAssignment(arg)
		if err != nil {
			return err
		}
		partial = config.Merge(partial, nest(splitKey(key), value))
	}

	if _, err := store.Save(partial); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("saved ")+store.Path())
	return nil
}

func splitKey(key string) []string {
	return strings.Split(key, ".")
}

// parseAssignment splits KEY=VALUE. VALUE is read as a YAML scalar or flow
// collection, so 3 is a number, true a bool and [a, b] a list; anything that
// does not parse stays a string. KEY:=VALUE and string-typed keys skip the
// YAML step.
func parseAssignment(arg string) (string, any, error) {
	key, raw, ok := strings.Cut(arg, "=")
	literal := strings.HasSuffix(key, ":")
	key = strings.TrimSpace(strings.TrimSuffix(key, ":"))
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
	}
	parts := splitKey(key)
	for _, part := range parts {
		if part == "" {
			return "", nil, fmt.Errorf("invalid config key %q", key)
		}
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || literal || stringKey(parts) {
		return key, raw, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return key, raw, nil
	}
	return key, normalize(value), nil
}

// stringKey reports whether key only ever holds text: credentials and keys
// whose default is a string.
func stringKey(parts []string) bool {
	if strings.HasSuffix(parts[len(parts)-1], "api_key") {
		return true
	}
	def, ok := config.Lookup(config.Defaults(), parts...)
	if !ok {
		return false
	}
	_, isString := def.(string)
	return isString
}

// normalize converts YAML numbers to float64 so saved values match what
// encoding/json reads back.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// nest builds {"a": {"b": value}} from the path a.b.
func nest(path []string, value any) map[string]any {
	out := map[string]any{path[len(path)-1]: value}
	for i := len(path) - 2; i >= 0; i-- {
		out = map[string]any{path[i]: out}
	}
	return out
}
