package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/philippeb99/researcher-sub001/internal/auth"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" {
			return eris.New("--user is required")
		}

		mgr := auth.NewManager(
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
			cfg.Auth.ElevatedRoles,
		)
		token, err := mgr.GenerateToken(auth.Identity{UserID: tokenUser, Role: tokenRole})
		if err != nil {
			return eris.Wrap(err, "generate token")
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id the token acts as")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "member", "role claim")
	rootCmd.AddCommand(tokenCmd)
}
