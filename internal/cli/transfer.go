package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/persons/internal/core"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a semicolon-separated person file",
	Long: `Import reads FILE line by line (date;firstName;lastName;surName;city;country)
and writes the records to the database in batches. Lines with fewer than six
fields are skipped. Unparseable dates are stored as empty.

Interrupting the import stops it after the current line; batches already
written are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export filtered persons to a spreadsheet or XML file",
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx DEST",
	Short: "Export to .xlsx, one file per million rows",
	Long: `Export the filtered persons to DEST. When the result does not fit in one
worksheet, files are named DEST_1.xlsx, DEST_2.xlsx and so on.`,
	Args: cobra.ExactArgs(1),
	RunE: runExportXLSX,
}

var exportXMLCmd = &cobra.Command{
	Use:   "xml DEST",
	Short: "Export to a single streamed XML document",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportXML,
}

var exportFlags struct {
	fields []string
}

// filterFlags is shared by export and preview.
type filterFlags struct {
	from      string
	to        string
	firstName string
	lastName  string
	surName   string
	city      string
	country   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.from, "from", "", "Earliest date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "Latest date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.firstName, "first-name", "", "Exact first name")
	fs.StringVar(&f.lastName, "last-name", "", "Exact last name")
	fs.StringVar(&f.surName, "sur-name", "", "Exact surname")
	fs.StringVar(&f.city, "city", "", "Exact city")
	fs.StringVar(&f.country, "country", "", "Exact country")
}

func (f *filterFlags) filter() (core.Filter, error) {
	from, err := core.ParseDateBound(f.from)
	if err != nil {
		return core.Filter{}, fmt.Errorf("--from: %w", err)
	}
	to, err := core.ParseDateBound(f.to)
	if err != nil {
		return core.Filter{}, fmt.Errorf("--to: %w", err)
	}
	if from != nil && to != nil && to.Before(*from) {
		return core.Filter{}, fmt.Errorf("--to must not be before --from")
	}
	return core.Filter{
		DateFrom:  from,
		DateTo:    to,
		FirstName: f.firstName,
		LastName:  f.lastName,
		SurName:   f.surName,
		City:      f.city,
		Country:   f.country,
	}, nil
}

var exportFilter filterFlags

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportXLSXCmd, exportXMLCmd)

	exportFilter.register(exportXLSXCmd)
	exportFilter.register(exportXMLCmd)

	names := make([]string, len(core.AllFields))
	for i, f := range core.AllFields {
		names[i] = string(f)
	}
	exportXLSXCmd.Flags().StringSliceVar(&exportFlags.fields, "fields", names,
		"Columns to export, in order ("+strings.Join(names, ",")+")")
}

func runImport(cmd *cobra.Command, args []string) error {
	id, err := app.service.StartImport(args[0])
	if err != nil {
		return err
	}

	res, err := follow(ctxOrBackground(cmd), app.service, id, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records in %s\n", res.Processed, res.Duration.Round(time.Millisecond))
	return nil
}

func runExportXLSX(cmd *cobra.Command, args []string) error {
	filter, err := exportFilter.filter()
	if err != nil {
		return err
	}
	fields, err := core.ParseFields(exportFlags.fields)
	if err != nil {
		return err
	}

	id, err := app.service.StartExportXLSX(filter, fields, args[0])
	if err != nil {
		return err
	}
	return reportExport(cmd, id)
}

func runExportXML(cmd *cobra.Command, args []string) error {
	filter, err := exportFilter.filter()
	if err != nil {
		return err
	}

	id, err := app.service.StartExportXML(filter, args[0])
	if err != nil {
		return err
	}
	return reportExport(cmd, id)
}

func reportExport(cmd *cobra.Command, id string) error {
	res, err := follow(ctxOrBackground(cmd), app.service, id, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "exported %d records in %s\n", res.Processed, res.Duration.Round(time.Millisecond))
	for _, f := range res.Files {
		fmt.Fprintln(out, f)
	}
	return nil
}
