package main

import (
	"fmt"

	"github.com/dusk-indust/courseforge/internal/export"
	"github.com/dusk-indust/courseforge/internal/outline"
)

func runDiagram(outlinePath string) error {
	doc, err := outline.Load(outlinePath)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	fmt.Print(export.GenerateMermaid(doc))
	return nil
}
