package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newLoginCommand() *cobra.Command {
	var email, password string
	var register bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the daemon and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			c := newClient()
			path := "/api/auth/login"
			if register {
				path = "/api/auth/register"
			}

			var result struct {
				Token string `json:"token"`
			}
			body := map[string]string{"email": email, "password": password}
			if err := c.do(http.MethodPost, path, body, &result); err != nil {
				return err
			}
			if err := c.saveToken(result.Token); err != nil {
				return err
			}

			cmd.Printf("token saved to %s\n", tokenPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&register, "register", false, "register the account instead of logging in")
	return cmd
}
