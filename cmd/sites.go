package cmd

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
	"github.com/brogergvhs/mangacrawl/internal/ui"
)

var sitesJSON bool

type siteRow struct {
	Name       string   `json:"name"`
	Patterns   []string `json:"patterns"`
	QuickCheck bool     `json:"quickCheck"`
	Builtin    bool     `json:"builtin"`
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the supported websites, built-in and from the config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		// adapters are only listed, so no browser is started
		reg, err := buildRegistry(cfg, nil, ui.Nop())
		if err != nil {
			return err
		}

		builtin := lo.SliceToMap(builtinProfiles(), func(p generic.Profile) (string, bool) {
			return strings.ToLower(p.Name), true
		})

		rows := lo.Map(reg.Adapters(), func(a providers.Adapter, _ int) siteRow {
			_, quick := a.(providers.QuickChecker)
			return siteRow{
				Name: a.Name(),
				Patterns: lo.Map(a.Patterns(), func(re *regexp.Regexp, _ int) string {
					return re.String()
				}),
				QuickCheck: quick,
				Builtin:    builtin[strings.ToLower(a.Name())],
			}
		})

		if sitesJSON {
			return printJSON(rows)
		}

		w := newTable(os.Stdout)
		_, _ = fmt.Fprintln(w, "NAME\tSOURCE\tCHECK\tPATTERNS")
		for _, r := range rows {
			source := "config"
			if r.Builtin {
				source = "built-in"
			}
			check := ""
			if r.QuickCheck {
				check = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, source, check, strings.Join(r.Patterns, " "))
		}
		flushTable(w)

		return nil
	},
}

func init() {
	sitesCmd.Flags().BoolVar(&sitesJSON, "json", false, "print the list as JSON")
	rootCmd.AddCommand(sitesCmd)
}
