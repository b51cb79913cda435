package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"virtucast/internal/workspace"
)

func newWorkspaceCommand() *cobra.Command {
	workspaceCmd := &cobra.Command{
		Use:         "workspace",
		Short:       "Manage render workspaces",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	workspaceCmd.AddCommand(newWorkspaceInitCommand())
	workspaceCmd.AddCommand(newWorkspaceInfoCommand())

	return workspaceCmd
}

func newWorkspaceInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <parent> <name>",
		Short: "Create a workspace directory with config and output scaffolding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Init(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized workspace %s\n", ws.Root)
			fmt.Fprintf(out, "Workspace ID: %s\n", ws.ID)
			fmt.Fprintf(out, "Edit %s to point at your editor and project.\n", ws.ConfigPath)
			return nil
		},
	}
}

func newWorkspaceInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info [dir]",
		Short: "Show the workspace governing a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			if start == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				start = wd
			}

			ws, err := workspace.Find(start)
			if err != nil {
				if errors.Is(err, workspace.ErrNoWorkspace) {
					return fmt.Errorf("no workspace found at or above %s", start)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace root: %s\n", ws.Root)
			if ws.ID != "" {
				fmt.Fprintf(out, "Workspace ID:   %s\n", ws.ID)
			}
			fmt.Fprintf(out, "Config file:    %s\n", ws.ConfigPath)
			if !ws.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Created:        %s\n", ws.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
