package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/spf13/cobra"
)

var clientScopes []string

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage API clients",
	Long:  "Manage client credentials for machine access to the API. Each client carries a scope grant that limits what its tokens may do.",
}

var clientsAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add a new client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]

		if len(clientScopes) == 0 {
			clientScopes = []string{domain.ScopeProcsRead}
		}
		if err := domain.ValidateScopes(clientScopes); err != nil {
			return err
		}

		services, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()

		secret := uuid.New().String()
		hashed, err := services.AuthService.HashPassword(secret)
		if err != nil {
			return fmt.Errorf("failed to hash secret: %w", err)
		}

		client := domain.NewClient(label, hashed, clientScopes)
		if err := services.ClientRepo.Create(cmd.Context(), client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		fmt.Println("Client created successfully")
		fmt.Printf("Client ID: %s\n", client.ID)
		fmt.Printf("Client Secret: %s\n", secret)
		fmt.Printf("Scopes: %s\n", strings.Join(client.Scopes, " "))
		fmt.Println("\nIMPORTANT: Save the client secret now. It will not be shown again!")
		return nil
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <client-id>",
	Short: "Delete a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := args[0]

		services, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()

		if !confirmDeletion("client", clientID) {
			fmt.Println("Cancelled")
			return nil
		}

		if err := services.ClientRepo.Delete(cmd.Context(), clientID); err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}

		fmt.Printf("Client '%s' deleted successfully\n", clientID)
		return nil
	},
}

var clientsUpdateCmd = &cobra.Command{
	Use:   "update <client-id> [new-label]",
	Short: "Update client label or scopes",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := args[0]

		if len(args) < 2 && len(clientScopes) == 0 {
			return fmt.Errorf("nothing to update: provide a new label, --scopes, or both")
		}
		if len(clientScopes) > 0 {
			if err := domain.ValidateScopes(clientScopes); err != nil {
				return err
			}
		}

		services, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()

		client, err := services.ClientRepo.FindByID(cmd.Context(), clientID)
		if err != nil {
			return fmt.Errorf("client not found: %s", clientID)
		}

		if len(args) == 2 {
			client.Label = args[1]
		}
		if len(clientScopes) > 0 {
			client.Scopes = clientScopes
		}
		client.UpdatedAt = time.Now()

		if err := services.ClientRepo.Update(cmd.Context(), client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}

		fmt.Printf("Client '%s' updated successfully\n", clientID)
		return nil
	},
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()

		clients, err := services.ClientRepo.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}
		if len(clients) == 0 {
			fmt.Println("No clients found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT ID\tLABEL\tSCOPES\tCREATED AT")
		for _, client := range clients {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				client.ID,
				client.Label,
				strings.Join(client.Scopes, " "),
				client.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsAddCmd)
	clientsCmd.AddCommand(clientsDeleteCmd)
	clientsCmd.AddCommand(clientsUpdateCmd)
	clientsCmd.AddCommand(clientsListCmd)

	clientsAddCmd.Flags().StringSliceVar(&clientScopes, "scopes", nil, "scopes to grant (procs:read, procs:control, admin)")
	clientsUpdateCmd.Flags().StringSliceVar(&clientScopes, "scopes", nil, "replacement scope grant")
}
