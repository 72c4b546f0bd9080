package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/trueque/internal/models"
	"github.com/user/trueque/internal/session"
)

var (
	loginEmail    string
	loginPassword string
	loginGoogle   bool

	registerName     string
	registerEmail    string
	registerCity     string
	registerDegree   string
	registerPassword string
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "log in through Google instead of email/password")

	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerCity, "city", "", "city (for in-person exchanges)")
	registerCmd.Flags().StringVar(&registerDegree, "degree", "", "degree programme (helps match study notes)")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password")
	registerCmd.MarkFlagRequired("name")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginGoogle {
			return runGoogleLogin(cmd)
		}
		if loginEmail == "" || loginPassword == "" {
			return errors.New("--email and --password are required (or use --google)")
		}
		if err := current.session.Login(cmd.Context(), loginEmail, loginPassword); err != nil {
			return friendlyAuthError(err, "Login failed: check your email and password.")
		}
		fmt.Println("Logged in.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := models.Registration{
			Nombre:  registerName,
			Email:   registerEmail,
			Ciudad:  registerCity,
			Carrera: registerDegree,
		}
		if err := current.session.Register(cmd.Context(), profile, registerPassword); err != nil {
			return friendlyAuthError(err, "Registration failed: the account may already exist or a field is invalid.")
		}
		fmt.Println("Account created, you are logged in.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		current.session.Logout(cmd.Context())
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := current.api.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s> (id %d)\n", p.Nombre, p.Email, p.ID)
		if p.Ciudad != "" {
			fmt.Println("City:", p.Ciudad)
		}
		if p.Carrera != "" {
			fmt.Println("Degree:", p.Carrera)
		}
		return nil
	},
}

// friendlyAuthError keeps the inline message for the user and the wrapped
// cause for the error exit path.
func friendlyAuthError(err error, msg string) error {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%s (%w)", msg, err)
	}
	return err
}
