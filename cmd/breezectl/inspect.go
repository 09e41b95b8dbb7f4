package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cseils/breeze.tooling/internal/metadata"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <document.json>",
		Short: "Verify the structural invariants of a metadata document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			var doc metadata.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse document: %w", err)
			}
			return inspectDocument(cmd, &doc)
		},
	}
}

func inspectDocument(cmd *cobra.Command, doc *metadata.Document) error {
	out := cmd.OutOrStdout()
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "structural types: %d, resources: %d, enums: %d\n",
		len(doc.StructuralTypes), len(doc.ResourceEntityTypeMap), len(doc.EnumTypes))

	violations := 0
	report := func(name string, problems []string) {
		if len(problems) == 0 {
			fmt.Fprintf(out, "%s %s\n", pass("ok"), name)
			return
		}
		violations += len(problems)
		fmt.Fprintf(out, "%s %s\n", fail("fail"), name)
		for _, p := range problems {
			fmt.Fprintf(out, "     %s\n", p)
		}
	}

	report("type keys are unique", checkTypeKeys(doc))
	report("resource map is consistent", checkResources(doc))
	report("association names are endpoint independent", checkAssociations(doc))
	report("enumerations are deduplicated", checkEnums(doc))

	if violations > 0 {
		return fmt.Errorf("%d invariant violation(s)", violations)
	}
	return nil
}

func checkTypeKeys(doc *metadata.Document) []string {
	var problems []string
	seen := make(map[string]struct{})
	for _, st := range doc.StructuralTypes {
		key := st.TypeKey()
		if _, ok := seen[key]; ok {
			problems = append(problems, fmt.Sprintf("duplicate type key %q", key))
		}
		seen[key] = struct{}{}
	}
	return problems
}

// checkResources verifies each resource maps to a known type whose
// defaultResourceName points back at it, and that no two types claim the
// same resource.
func checkResources(doc *metadata.Document) []string {
	var problems []string
	byResource := make(map[string]string)
	for _, st := range doc.StructuralTypes {
		if prior, ok := byResource[st.DefaultResourceName]; ok {
			problems = append(problems, fmt.Sprintf("resource %q claimed by %s and %s",
				st.DefaultResourceName, prior, st.TypeKey()))
		}
		byResource[st.DefaultResourceName] = st.TypeKey()
	}
	for resource, key := range doc.ResourceEntityTypeMap {
		st, ok := doc.TypeByKey(key)
		if !ok {
			problems = append(problems, fmt.Sprintf("resource %q maps to unknown type %q", resource, key))
			continue
		}
		if st.DefaultResourceName != resource {
			problems = append(problems, fmt.Sprintf("resource %q maps to type with defaultResourceName %q",
				resource, st.DefaultResourceName))
		}
	}
	return problems
}

// checkAssociations recomputes each navigation property's name prefix from
// its two endpoint short names; a name that differs per endpoint can never
// match on the client.
func checkAssociations(doc *metadata.Document) []string {
	var problems []string
	for _, st := range doc.StructuralTypes {
		for _, nav := range st.NavigationProperties {
			target := nav.EntityTypeName
			if i := strings.Index(target, ":#"); i >= 0 {
				target = target[:i]
			}
			a, b := st.ShortName, target
			if b < a {
				a, b = b, a
			}
			prefix := "FK_" + a + "_" + b + "_"
			if !strings.HasPrefix(nav.AssociationName, prefix) {
				problems = append(problems, fmt.Sprintf("%s.%s: association %q does not start with %q",
					st.ShortName, nav.NameOnServer, nav.AssociationName, prefix))
			}
		}
	}
	return problems
}

func checkEnums(doc *metadata.Document) []string {
	var problems []string
	seen := make(map[string]struct{})
	for _, e := range doc.EnumTypes {
		if _, ok := seen[e.ShortName]; ok {
			problems = append(problems, fmt.Sprintf("enumeration %q appears more than once", e.ShortName))
		}
		seen[e.ShortName] = struct{}{}
	}
	return problems
}
