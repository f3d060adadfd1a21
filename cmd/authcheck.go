package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/miaoti/trainticket-fuzz/pkg/authconf"
)

var authcheckCmd = &cobra.Command{
	Use:   "authcheck",
	Short: "Validate the authentication template before a run",
	RunE: func(cmd *cobra.Command, _ []string) error {

		configPath, _ := cmd.Flags().GetString("config")
		samplePath, _ := cmd.Flags().GetString("sample")

		doc, err := authconf.Load(configPath)
		if err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		log.Infof("auth config ok: %d identities", len(doc.Auth))

		if samplePath == "" {
			return nil
		}

		// Dry-run the extraction rules against a captured login response.
		body, err := os.ReadFile(samplePath)
		if err != nil {
			return err
		}
		for _, e := range doc.Auth {
			token, err := e.Login.Token.Extract(body)
			if err != nil {
				log.Warnf("%s: %v", e.Name, err)
				exitCode = 2
				continue
			}
			log.Infow("token extracted",
				"identity", e.Name,
				"header", e.Login.Token.HeaderName,
				"token", maskToken(token),
			)
		}
		return nil
	},
}

func maskToken(t string) string {
	if len(t) <= 8 {
		return "********"
	}
	return t[:4] + "..." + t[len(t)-4:]
}

func init() {
	authcheckCmd.Flags().String("config", "auth_config.yaml", "authentication template to validate")
	authcheckCmd.Flags().String("sample", "", "captured login response to dry-run the extraction rules against")
	rootCmd.AddCommand(authcheckCmd)
}
