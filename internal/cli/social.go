package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

// socialLoginTimeout bounds how long we wait for the browser round trip.
const socialLoginTimeout = 5 * time.Minute

// runGoogleLogin runs the federated login flow: a loopback HTTP listener
// catches the provider redirect carrying the external identity token,
// which is then exchanged for a session at the backend.
func runGoogleLogin(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), socialLoginTimeout)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}

	tokenCh := make(chan string, 1)
	r := mux.NewRouter()
	r.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		token := req.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}
		select {
		case tokenCh <- token:
		default: // a second redirect; first one wins
		}
		fmt.Fprintln(w, "Signed in. You can close this window and return to the terminal.")
	}).Methods(http.MethodGet)

	srv := &http.Server{Handler: r}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	callback := fmt.Sprintf("http://%s/callback", ln.Addr())
	fmt.Println("Open this URL in your browser to sign in with Google:")
	fmt.Printf("  %s/auth/google/start?redirect_uri=%s\n", current.cfg.APIBaseURL, callback)

	var token string
	select {
	case token = <-tokenCh:
	case <-ctx.Done():
		return errors.New("timed out waiting for the browser sign-in")
	}

	if err := current.session.LoginWithSocialToken(ctx, token); err != nil {
		return friendlyAuthError(err, "Google sign-in was rejected by the server.")
	}
	fmt.Println("Logged in.")
	return nil
}
