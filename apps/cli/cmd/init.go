package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitcontract project",
	Long: `Initialize a new hitcontract project in the current directory.

This creates:
  - .hitcontract.yaml  - Configuration file with defaults
  - example.yaml       - Example suite

Examples:
  hitcontract init
  hitcontract init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `name: Example API
baseUrl: https://jsonplaceholder.typicode.com
timeout: 10000
headers:
  Accept: application/json

cases:
  - name: lists users
    tags: [smoke]
    request:
      url: /users
    expect:
      status: 200
      bodyLike: [{id: $number, email: $string}]

  - name: creates post
    request:
      method: POST
      url: /posts
      json:
        title: "{{randomString(12)}}"
        userId: 1
    expect:
      status: 201
      bodyLike: {id: $number, userId: 1}
    capture:
      postId: body.id

  - name: reads first user
    dependsOn: [lists users]
    request:
      url: /users/1
    expect:
      bodyLikeAt:
        address.geo: {lat: $string, lng: $string}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "hitcontract/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to write example suite: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun it with: hitcontract run %s\n", filepath.Base(exampleFile))
	return nil
}
