package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// Offline admin commands work on the store directly, for a parent who lost the PIN or
// has no admin screen at hand. They run alongside a live daemon without coordination,
// so the daemon picks changes up on its next read.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Change settings and codes directly in the store",
}

var setLimitCmd = &cobra.Command{
	Use:   "set-limit MINUTES",
	Short: "Set the daily limit in minutes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes must be an integer: %w", err)
		}
		return withApp(cmd, func(a *app) error {
			if err := a.admin.SetDailyLimit(cmd.Context(), minutes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daily limit set to %d minutes\n", minutes)
			return nil
		})
	},
}

var setPinCmd = &cobra.Command{
	Use:   "set-pin PIN",
	Short: "Replace the admin PIN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.admin.ChangePin(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin PIN changed")
			return nil
		})
	},
}

var (
	generateCount   int
	generateMinutes int
)

var generateCodesCmd = &cobra.Command{
	Use:   "generate-codes",
	Short: "Replace all grant codes with a fresh batch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			codes, err := a.admin.GenerateCodes(cmd.Context(), generateCount, generateMinutes)
			if err != nil {
				return err
			}
			for _, c := range codes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d min\n", c.Value(), c.Minutes())
			}
			return nil
		})
	},
}

var listCodesCmd = &cobra.Command{
	Use:   "list-codes",
	Short: "List stored grant codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			codes, err := a.admin.ListCodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No codes stored")
				return nil
			}
			for _, c := range codes {
				state := "active"
				if c.IsUsed() {
					state = "used " + c.UsedAt().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d min\t%s\n", c.Value(), c.Minutes(), state)
			}
			return nil
		})
	},
}

var deleteCodeCmd = &cobra.Command{
	Use:   "delete-code CODE",
	Short: "Delete one grant code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return a.admin.DeleteCode(cmd.Context(), args[0])
		})
	},
}

var disableBlockingCmd = &cobra.Command{
	Use:   "disable-blocking",
	Short: "Stop evicting applications until blocking is enabled again",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.admin.SetBlocking(cmd.Context(), false); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Blocking disabled")
			return nil
		})
	},
}

func init() {
	generateCodesCmd.Flags().IntVar(&generateCount, "count", 10, "number of codes")
	generateCodesCmd.Flags().IntVar(&generateMinutes, "minutes", 30, "minutes granted per code")

	adminCmd.AddCommand(setLimitCmd, setPinCmd, generateCodesCmd, listCodesCmd, deleteCodeCmd, disableBlockingCmd)
}

func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
