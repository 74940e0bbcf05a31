package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "barrel",
	Short: "Barrel CLI",
	Long:  "A CLI for the Barrel member and score archive service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(renewCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(passwdCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(auditCmd())
}

func promptLine(label string) string {
	fmt.Print(label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// --- login / renew / whoami ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Login and store the issued tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := promptLine("Password: ")
			client := newClient()
			access, renewal, err := client.login("/selfservice/login", args[0], password)
			if err != nil {
				printError(err.Error())
				return nil
			}
			cfg.AccessToken = access
			cfg.RenewalToken = renewal
			if err := saveConfig(); err != nil {
				printError("saving config: " + err.Error())
				return nil
			}
			printSuccess("Success! Tokens saved to config.")
			return nil
		},
	}
	return cmd
}

func renewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Exchange the stored renewal token for a fresh access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			access, err := client.renew()
			if err != nil {
				printError(err.Error())
				return nil
			}
			cfg.AccessToken = access
			if err := saveConfig(); err != nil {
				printError("saving config: " + err.Error())
				return nil
			}
			printSuccess("Success! Access token renewed.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user and authorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/selfservice/info")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- passwd ---

func passwdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd [username]",
		Short: "Change your password, or reset another user's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if len(args) == 1 {
				newPassword := promptLine("New password for " + args[0] + ": ")
				_, err := client.post("/selfservice/password/"+args[0], map[string]any{
					"newPassword": newPassword,
				})
				if err != nil {
					printError(err.Error())
					return nil
				}
				printSuccess("Success! Password reset.")
				return nil
			}
			oldPassword := promptLine("Old password: ")
			newPassword := promptLine("New password: ")
			_, err := client.post("/selfservice/password", map[string]any{
				"oldPassword": oldPassword,
				"newPassword": newPassword,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Password changed.")
			return nil
		},
	}
	return cmd
}

// --- member ---

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Directory member commands"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List members grouped by register",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/api/groupedmembers")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}

// --- score ---

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "score", Short: "Score archive commands"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/api/scores")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/api/scores/" + args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias, _ := cmd.Flags().GetString("alias")
			publisher, _ := cmd.Flags().GetString("publisher")
			conductor, _ := cmd.Flags().GetBool("conductor-score")
			client := newClient()
			result, err := client.post("/api/scores", map[string]any{
				"title":          args[0],
				"alias":          alias,
				"publisher":      publisher,
				"conductorScore": conductor,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	addCmd.Flags().String("alias", "", "Common alternative title")
	addCmd.Flags().String("publisher", "", "Publisher")
	addCmd.Flags().Bool("conductor-score", false, "Whether a conductor score exists")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/api/scores/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Score deleted.")
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, addCmd, deleteCmd)
	return cmd
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			limit, _ := cmd.Flags().GetInt("limit")
			path := fmt.Sprintf("/api/audit-log?limit=%d", limit)
			if username != "" {
				path += "&username=" + username
			}
			client := newClient()
			result, err := client.get(path)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Filter by username")
	cmd.Flags().Int("limit", 50, "Maximum entries")
	return cmd
}
