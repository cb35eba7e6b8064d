package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	schemav1 "github.com/turbokube/shipyard/pkg/schema/v1"
)

// newSchemaCmd prints the JSON schema for the pipeline config
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the shipyard.yaml JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := jsonschema.Reflect(&schemav1.PipelineConfig{})
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
