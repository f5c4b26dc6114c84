package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/charlesng35/snippets/internal/services"
)

const exportPageSize = 200

// snippetDocument is the YAML layout shared by export and import.
type snippetDocument struct {
	Version  string          `yaml:"version"`
	Owner    documentOwner   `yaml:"owner"`
	Snippets []documentEntry `yaml:"snippets"`
}

type documentOwner struct {
	Global bool   `yaml:"global,omitempty"`
	User   string `yaml:"user,omitempty"`
}

type documentEntry struct {
	Name  string `yaml:"name"`
	Type  int    `yaml:"type"`
	Value string `yaml:"value"`
}

func newSnippetsCmd(c *cli) *cobra.Command {
	snippets := &cobra.Command{
		Use:   "snippets",
		Short: "Export and import snippet sets",
	}
	snippets.AddCommand(newExportCmd(c), newImportCmd(c))
	return snippets
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		global   bool
		username string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the global or one user's snippets as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, name, err := ownerFromFlags(cmd, c, global, username)
			if err != nil {
				return err
			}
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}

			doc := snippetDocument{
				Version:  services.SnippetsVersion,
				Owner:    documentOwner{Global: owner.Global, User: name},
				Snippets: []documentEntry{},
			}
			for page := 1; ; page++ {
				items, total, err := svc.Snippets.List(cmd.Context(), services.ListSnippetsOptions{
					Owner:    owner,
					Page:     page,
					PageSize: exportPageSize,
				})
				if err != nil {
					return err
				}
				for _, item := range items {
					doc.Snippets = append(doc.Snippets, documentEntry{Name: item.Name, Type: item.Type, Value: item.Value})
				}
				if len(items) == 0 || int64(len(doc.Snippets)) >= total {
					break
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("encode snippets: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "export global snippets")
	cmd.Flags().StringVar(&username, "user", "", "export the private snippets of this user")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var (
		global   bool
		username string
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create snippets from a YAML export; FILE may be - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			// flags override the owner recorded in the document
			if !global && strings.TrimSpace(username) == "" {
				global = doc.Owner.Global
				username = doc.Owner.User
			}
			owner, _, err := ownerFromFlags(cmd, c, global, username)
			if err != nil {
				return err
			}
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}

			var userID *string
			if !owner.Global {
				id := owner.UserID
				userID = &id
			}
			inputs := make([]services.CreateSnippetInput, len(doc.Snippets))
			for i, entry := range doc.Snippets {
				inputs[i] = services.CreateSnippetInput{
					UserID: userID,
					Type:   entry.Type,
					Name:   entry.Name,
					Value:  entry.Value,
				}
			}
			created, err := svc.Snippets.CreateMany(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d snippets\n", len(created))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "import as global snippets")
	cmd.Flags().StringVar(&username, "user", "", "import as private snippets of this user")
	return cmd
}

func readDocument(cmd *cobra.Command, path string) (*snippetDocument, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var doc snippetDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &doc, nil
}
