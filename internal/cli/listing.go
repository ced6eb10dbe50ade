package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
)

var scenariosCategory string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List evaluation scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if scenariosCategory != "" && !catalog.ValidCategory(catalog.Category(scenariosCategory)) {
			return fmt.Errorf("unknown category: %s", scenariosCategory)
		}
		scenarios := app.catalog.ScenariosByCategory(catalog.Category(scenariosCategory))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTITLE\tCATEGORY\tCOMPLEXITY\tPERSONA\tTOOLS\tTURNS")
		for i, sc := range scenarios {
			personaName := "?"
			if persona, err := app.catalog.PersonaFor(sc); err == nil {
				personaName = persona.Name
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
				i, sc.Title, catalog.CategoryDisplay[sc.Category], sc.Complexity,
				personaName, len(sc.ExpectedTools), sc.MaxTurns)
		}
		return w.Flush()
	},
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List immigration client personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tNATIONALITY\tSTATUS\tVISA\tCOMPLEXITY")
		for i, p := range app.catalog.Personas() {
			fmt.Fprintf(w, "%d\t%s %s\t%s\t%s\t%s\t%s\n",
				i, p.CountryFlag, p.Name, p.Nationality, p.CurrentStatus, p.VisaType, p.ComplexityLevel)
		}
		return w.Flush()
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ready := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL ID\tDISPLAY NAME\tPROVIDER\tTOOLS\tSTATUS")
		for _, m := range app.registry.All() {
			status := fmt.Sprintf("missing %s", m.EnvKey)
			if app.creds.Has(m.EnvKey) {
				status = "ready"
				ready++
			}
			tools := "no"
			if m.SupportsTools {
				tools = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ModelID, m.DisplayName, m.Provider, tools, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%d of %d models ready\n", ready, len(app.registry.All()))
		return nil
	},
}

func init() {
	scenariosCmd.Flags().StringVarP(&scenariosCategory, "category", "c", "", "filter by category")
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(modelsCmd)
}
