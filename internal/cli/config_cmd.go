package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the engine configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter codeflow.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "codeflow.yaml"
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

const starterConfig = `engine:
  name: codeflow
  detector:
    command: ruff
    timeout: 2m
    # select_codes: [E501, F401]
  llm:
    default_provider: openai
    timeout: 120s
    providers:
      openai:
        api_key_env: OPENAI_API_KEY
        model: gpt-4o-mini
      anthropic:
        api_key_env: ANTHROPIC_API_KEY
        model: claude-3-5-sonnet-20240620
      ollama:
        base_url: http://localhost:11434
        model: qwen2.5-coder
    fallback:
      - provider: openai
        model: gpt-4o-mini
      - provider: anthropic
        model: claude-3-5-sonnet-20240620
  validation:
    syntax_check: true
    import_check: true
    lint_delta_check: true
    test_check: false
    rollback_threshold: 0.5
  workflow:
    strategy: validation
    batch_size: 5
    max_fixes: 20
    workers: 1
`

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
