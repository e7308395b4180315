package main

import (
	"context"
	"fmt"
	"log"

	"github.com/beldeveloper/deploy-lego/service/credentials"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage backend credentials",
	Long:  "Store per-kind credential bundles in the OS keyring.",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set [kind]",
	Short: "Store the credentials for a backend kind",
	Args:  cobra.ExactArgs(1),
	Run:   runCredentialsSet,
}

var credentialSecrets map[string]string

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)

	credentialsSetCmd.Flags().StringToStringVarP(&credentialSecrets, "secret", "s", nil, "Secret key=value (repeatable)")
}

func runCredentialsSet(cmd *cobra.Command, args []string) {
	if len(credentialSecrets) == 0 {
		log.Fatal("At least one --secret key=value is required")
	}
	k := credentials.NewKeyring()
	if err := k.Store(context.Background(), args[0], credentialSecrets); err != nil {
		log.Fatalf("Failed to store the credentials: %v", err)
	}
	fmt.Printf("Stored %d secrets for kind %s\n", len(credentialSecrets), args[0])
}
