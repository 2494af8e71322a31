package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ndomog/internal/model"
)

// NewProfileCommand creates the profile command. It upserts the profile of
// the configured user.
func NewProfileCommand(opts *RootOptions) *cobra.Command {
	var email, username, avatar string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Set the acting user's profile",
		Long: `Create or replace the profile of the configured user (user.id).

The email defaults to user.email from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if email == "" {
				email = a.cfg.User.Email
			}
			p, err := a.svc.UpsertProfile(cmd.Context(), model.Profile{
				ID:        a.cfg.User.ID,
				Email:     email,
				Username:  model.StringPtr(username),
				AvatarURL: model.StringPtr(avatar),
			})
			if err != nil {
				return gestureError("failed to update profile", err)
			}
			return a.out.Render(p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Profile %s: %s <%s>\n", p.ID, p.DisplayName(), p.Email)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "profile email")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&avatar, "avatar-url", "", "avatar image URL")
	return cmd
}
