package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/peoplesearch-cli/internal/engine"
	"github.com/sells-group/peoplesearch-cli/internal/model"
)

var (
	runSite          string
	runNames         []string
	runNamesFile     string
	runLocations     []string
	runCredits       int
	runMinAge        int
	runMaxAge        int
	runExcludeTypes  []string
	runExcludeCarr   []string
	runMinPropValue  int
	runRequirePhone  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one metered search task",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		names := runNames
		if runNamesFile != "" {
			fileNames, err := readNamesFile(runNamesFile)
			if err != nil {
				return err
			}
			names = append(names, fileNames...)
		}

		mode := model.ModeNameOnly
		if len(runLocations) > 0 {
			mode = model.ModeNameLocation
		}

		var excludeTypes []model.PhoneType
		for _, t := range runExcludeTypes {
			excludeTypes = append(excludeTypes, model.PhoneType(strings.ToLower(t)))
		}

		req := engine.Request{
			Site:      runSite,
			Mode:      mode,
			Names:     names,
			Locations: runLocations,
			Credits:   runCredits,
			Filter: model.Filter{
				MinAge:           runMinAge,
				MaxAge:           runMaxAge,
				ExcludePhoneType: excludeTypes,
				ExcludeCarriers:  runExcludeCarr,
				MinPropertyValue: runMinPropValue,
				RequirePhone:     runRequirePhone,
			},
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		eng := newEngine(st, func(line string) {
			fmt.Fprintln(os.Stderr, line)
		})

		stats, err := eng.Run(ctx, req)
		if stats != nil {
			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
		}
		return err
	},
}

// readNamesFile loads one name per line, skipping blanks and # comments.
func readNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open names file %s", path)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, eris.Wrap(scanner.Err(), "scan names file")
}

func init() {
	runCmd.Flags().StringVar(&runSite, "site", "truepeoplesearch", "site to search (truepeoplesearch, searchpeoplefree, anywho, linkedin)")
	runCmd.Flags().StringSliceVar(&runNames, "name", nil, "name to search (repeatable)")
	runCmd.Flags().StringVar(&runNamesFile, "names-file", "", "file with one name per line")
	runCmd.Flags().StringSliceVar(&runLocations, "location", nil, "city/state constraint (repeatable; enables nameLocation mode)")
	runCmd.Flags().IntVar(&runCredits, "credits", 0, "credit budget for this task")
	runCmd.Flags().IntVar(&runMinAge, "min-age", 0, "minimum age filter")
	runCmd.Flags().IntVar(&runMaxAge, "max-age", 0, "maximum age filter")
	runCmd.Flags().StringSliceVar(&runExcludeTypes, "exclude-phone-type", nil, "phone types to exclude (wireless, landline, voip)")
	runCmd.Flags().StringSliceVar(&runExcludeCarr, "exclude-carrier", nil, "carriers to exclude")
	runCmd.Flags().IntVar(&runMinPropValue, "min-property-value", 0, "minimum estimated property value filter")
	runCmd.Flags().BoolVar(&runRequirePhone, "require-phone", false, "drop records with no usable phone")
	rootCmd.AddCommand(runCmd)
}
