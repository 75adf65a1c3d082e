package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/persons/internal/core"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the first filtered persons and the filtered total",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored person",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var previewFilter filterFlags

var clearFlags struct {
	yes bool
}

func init() {
	rootCmd.AddCommand(previewCmd, clearCmd)
	previewFilter.register(previewCmd)
	clearCmd.Flags().BoolVarP(&clearFlags.yes, "yes", "y", false, "Do not ask for confirmation")
}

func runPreview(cmd *cobra.Command, _ []string) error {
	filter, err := previewFilter.filter()
	if err != nil {
		return err
	}

	records, total, err := app.service.Preview(ctxOrBackground(cmd), filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	header := make([]string, len(core.AllFields))
	for i, f := range core.AllFields {
		header[i] = string(f)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join(core.Project(r, core.AllFields), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nshowing %d of %d\n", len(records), total)
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearFlags.yes {
		fmt.Fprint(cmd.ErrOrStderr(), "Delete all stored persons? [y/N] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
			return nil
		}
	}

	if err := app.service.Clear(ctxOrBackground(cmd)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cleared")
	return nil
}
