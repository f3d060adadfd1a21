package cmd

import (
	"github.com/spf13/cobra"

	"github.com/miaoti/trainticket-fuzz/pkg/openapifix"
)

var fixspecCmd = &cobra.Command{
	Use:   "fixspec IN OUT",
	Short: "Rewrite generic api_ schema references to service-specific ones",
	Long: `The merged OpenAPI document of the system under test references shared
schemas under a generic api_ prefix. fixspec rewrites those $refs to the
service named by each operation's x-service-name and clones the request
bodies they point at, producing a document the fuzzer can resolve.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		res, err := openapifix.Fix(args[0], args[1])
		if err != nil {
			return err
		}

		log.Infow("specification fixed",
			"rewrittenRefs", res.RewrittenRefs,
			"clonedRequestBodies", res.ClonedRequestBodies,
			"out", args[1],
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fixspecCmd)
}
