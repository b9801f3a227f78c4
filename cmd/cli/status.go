package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/akeren/event-referrals/domain/referral"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/spf13/cobra"
)

func statusCmd(logger *log.Logger) *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "status <code>",
		Short: "Print the referral progress for a referral code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			service := referral.NewReferralServiceFactory(db, logger, nil, nil).CreateService()
			return printStatus(ctx, cmd.OutOrStdout(), service, args[0], origin)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", utils.GetEnvTrimmedOrDefault("PUBLIC_ORIGIN", ""), "Public origin used to build share links")

	return cmd
}

func printStatus(ctx context.Context, out io.Writer, service referral.ReferralService, code, origin string) error {
	status, err := service.GetStatus(ctx, code)
	if err != nil {
		return fmt.Errorf("load referral status: %w", err)
	}

	response := *status
	if origin != "" {
		response = response.WithLinks(origin)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
