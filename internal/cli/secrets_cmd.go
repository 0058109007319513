package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sisu-notifier/internal/secrets"
)

func newSecretsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "secrets",
		Short:       "Manage secrets stored in the OS keychain",
		Annotations: noConfig(),
	}

	set := &cobra.Command{
		Use:   "set <sisu|smtp>",
		Short: "Store the SISU auth header or the SMTP password",
		Long: `Store a secret in the OS keychain. The value is read from --value or,
when omitted, from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			kind := secrets.Kind(args[0])

			value, _ := cmd.Flags().GetString("value")
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading secret from stdin: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}

			if err := secrets.Set(kind, value); err != nil {
				return err
			}
			app.Logger.Debug().Str("kind", string(kind)).Msg("Secret stored")
			if output.IsJSON() {
				return output.JSON(map[string]any{"stored": true, "kind": kind})
			}
			output.Success("✓ Stored %s secret in keychain", kind)
			return nil
		},
	}
	set.Flags().String("value", "", "secret value (default: read from stdin)")

	del := &cobra.Command{
		Use:   "delete <sisu|smtp>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			kind := secrets.Kind(args[0])
			if err := secrets.Delete(kind); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"deleted": true, "kind": kind})
			}
			output.Success("✓ Removed %s secret", kind)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
