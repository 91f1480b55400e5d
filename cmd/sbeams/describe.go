package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

var (
	describeOutput string
	describeDetail string
	describeOwner  bool
	describeForm   bool
)

var describeCmd = &cobra.Command{
	Use:   "describe TABLE",
	Short: "Show a table's descriptor and columns",
	Long: `Show the table_property row of a table and its columns in render order.

By default every column is listed. --detail lists only the columns shown in
view mode at that detail level, and --form lists only the input form columns.`,
	Example: `  # Show a table as text
  sbeams describe MA_array

  # Columns visible in a brief view to a non-owner, as YAML
  sbeams describe MA_array --detail brief -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := loadRegistry(ctx, st)
		if err != nil {
			return err
		}
		return runDescribe(cmd.OutOrStdout(), reg.Snapshot(), args[0])
	},
}

func init() {
	f := describeCmd.Flags()
	f.StringVarP(&describeOutput, "output", "o", "text", "output format: text, yaml, json")
	f.StringVar(&describeDetail, "detail", "", "list view mode columns at this detail: brief, medium, full")
	f.BoolVar(&describeOwner, "owner", false, "with --detail, view as the record owner or an administrator")
	f.BoolVar(&describeForm, "form", false, "list only input form columns")
}

// tableDescription is the describe output for yaml and json.
type tableDescription struct {
	Table    registry.TableDescriptor    `json:"table"`
	Physical string                      `json:"physical_table"`
	Columns  []registry.ColumnDescriptor `json:"columns"`
}

func runDescribe(w io.Writer, snap *registry.Snapshot, name string) error {
	t, err := snap.DescribeTable(name)
	if err != nil {
		return cli.GeneralError("describe", err)
	}
	physical, err := snap.ResolvePhysical(name)
	if err != nil {
		return cli.ConfigError("resolving physical table", err)
	}

	var cols []registry.ColumnDescriptor
	switch {
	case describeForm:
		cols, err = snap.FormColumns(name)
	case describeDetail != "":
		detail, perr := parseDetail(describeDetail)
		if perr != nil {
			return cli.ConfigError("invalid --detail", perr)
		}
		cols, err = snap.VisibleColumns(name, registry.ViewContext{Detail: detail, OwnerOrAdmin: describeOwner})
	default:
		cols, err = snap.DescribeColumns(name)
	}
	if err != nil {
		return cli.GeneralError("describe", err)
	}

	desc := tableDescription{Table: t, Physical: physical, Columns: cols}
	switch describeOutput {
	case "json":
		out, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(desc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(out))
		return err
	case "text", "":
		return printDescription(w, desc)
	}
	return cli.ConfigError(fmt.Sprintf("unknown output format %q", describeOutput), nil)
}

func parseDetail(s string) (registry.Detail, error) {
	switch strings.ToLower(s) {
	case "brief":
		return registry.DetailBrief, nil
	case "medium":
		return registry.DetailMedium, nil
	case "full":
		return registry.DetailFull, nil
	}
	return registry.DetailBrief, fmt.Errorf("unknown detail %q", s)
}

func printDescription(w io.Writer, d tableDescription) error {
	t := d.Table
	fmt.Fprintf(w, "Table:        %s\n", t.Name)
	fmt.Fprintf(w, "Physical:     %s\n", d.Physical)
	fmt.Fprintf(w, "Category:     %s\n", t.Category)
	fmt.Fprintf(w, "Table group:  %s\n", t.TableGroup)
	fmt.Fprintf(w, "Primary key:  %s\n", t.PKColumn)
	if t.MultiInsertColumn != "" {
		fmt.Fprintf(w, "Multi insert: %s\n", t.MultiInsertColumn)
	}
	if len(t.ManageTables) > 0 {
		fmt.Fprintf(w, "Manage:       %s\n", strings.Join(t.ManageTables, ", "))
	}
	if len(t.NextSteps) > 0 {
		fmt.Fprintf(w, "Next steps:   %s\n", strings.Join(t.NextSteps, ", "))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCOLUMN\tTYPE\tNULL\tREQ\tKEY\tINPUT\tDISPLAY\tFK")
	for _, c := range d.Columns {
		fk := ""
		if c.FKTable != "" {
			fk = c.FKTable + "." + c.FKColumn
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Number, c.Name, c.DataType, flag(c.Nullable), flag(c.Required), flag(c.KeyField),
			c.InputType, c.Display, fk)
	}
	return tw.Flush()
}

func flag(b bool) string {
	if b {
		return "Y"
	}
	return ""
}
